package commands

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vaxpulse/internal/contracts"
)

func TestRenderTo(t *testing.T) {
	points := []contracts.GrowthPoint{
		{Country: "Wakanda", Month: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), Total: 100},
		{Country: "Wakanda", Month: time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC), Total: 150, GrowthRate: contracts.Float64Ptr(0.5)},
	}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		called := false
		require.NoError(t, renderTo(&buf, OutputTable, points, func() { called = true }))
		assert.True(t, called)
		assert.Empty(t, buf.String())
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderTo(&buf, OutputJSON, points, func() { t.Fatal("table printer called") }))
		assert.JSONEq(t, `[
			{"country":"Wakanda","month":"2021-01-01T00:00:00Z","total":100,"growth_rate":null},
			{"country":"Wakanda","month":"2021-02-01T00:00:00Z","total":150,"growth_rate":0.5}
		]`, buf.String())
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderTo(&buf, OutputYAML, points, func() { t.Fatal("table printer called") }))
		assert.Contains(t, buf.String(), "country: Wakanda")
		assert.Contains(t, buf.String(), "growth_rate: 0.5")
		assert.Contains(t, buf.String(), "total: 150")
	})

	t.Run("yaml inlines embedded quality", func(t *testing.T) {
		var buf bytes.Buffer
		report := qualityReport{QualitySummary: contracts.QualitySummary{Country: "Wakanda", ObservedMonths: 3}}
		require.NoError(t, renderTo(&buf, OutputYAML, report, func() {}))
		assert.Contains(t, buf.String(), "observed_months: 3")
		assert.Contains(t, buf.String(), "last_updated: null")
	})

	t.Run("unknown", func(t *testing.T) {
		err := renderTo(&bytes.Buffer{}, "xml", points, func() {})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "xml")
	})
}
