package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wonny/vaxpulse/pkg/config"
	"github.com/wonny/vaxpulse/pkg/logger"
)

// Example_withFields logs a PRIMARY→FALLBACK transition the way the orchestrator does
func Example_withFields() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	}

	var buf bytes.Buffer
	log := logger.NewWithWriter(cfg, &buf)

	log.WithError(errors.New("connection refused")).
		WithFields(map[string]interface{}{
			"op":      "series",
			"country": "Wakanda",
		}).
		Warn("Primary source failed, serving fallback")

	var line map[string]interface{}
	_ = json.Unmarshal(buf.Bytes(), &line)
	fmt.Println(line["level"], line["op"], line["country"], line["error"])
	fmt.Println(line["message"])

	// Output:
	// warn series Wakanda connection refused
	// Primary source failed, serving fallback
}

// Example_levels shows that records below LOG_LEVEL are dropped
func Example_levels() {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "info",
		LogFormat: "json",
	}

	var buf bytes.Buffer
	log := logger.NewWithWriter(cfg, &buf)

	log.Debug("Payload served from shared cache")
	fmt.Println("after debug:", buf.Len())

	log.Info("Fetched external payload")
	fmt.Println("after info:", buf.Len() > 0)

	// Output:
	// after debug: 0
	// after info: true
}
