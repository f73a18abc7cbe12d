package main

import (
	"os"

	"github.com/wonny/vaxpulse/cmd/vaxpulse/commands"
)

// main is the entry point for the VaxPulse CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/vaxpulse [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
