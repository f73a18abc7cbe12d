package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/vaxpulse/pkg/config"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vaxpulse",
	Short: "VaxPulse - 백신 접종 KPI 엔진",
	Long: `VaxPulse Unified CLI

국가별 누적 백신 접종 데이터를 월말 기준으로 정규화하고
MoM 성장률, 제조사 점유율, 데이터 품질, 세계 지도 지표를 계산합니다.
Primary store(PostgreSQL)가 없거나 비어 있으면 외부 bulk dataset으로 fallback 합니다.

Usage:
  go run ./cmd/vaxpulse [command]

Examples:
  go run ./cmd/vaxpulse api
  go run ./cmd/vaxpulse kpi growth Wakanda
  go run ./cmd/vaxpulse migrate
  go run ./cmd/vaxpulse ingest --vaccinations vaccinations.csv`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig loads configuration and applies the global flags on top of it
func loadConfig() (*config.Config, error) {
	if env != "" {
		os.Setenv("ENV", env)
	}

	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, err
	}

	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}
