package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/vaxpulse/internal/store"
	"github.com/wonny/vaxpulse/pkg/database"
	"github.com/wonny/vaxpulse/pkg/logger"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Primary store 스키마 적용",
	Long: `내장된 schema.sql을 primary store에 적용합니다.
모든 구문이 IF NOT EXISTS 이므로 여러 번 실행해도 안전합니다.

Tables:
  location             - 국가 목록 + 마지막 관측일
  vaccination          - 국가별 일별 누적 접종 수
  vaccination_by_manu  - 국가/제조사별 누적 접종 수

Example:
  go run ./cmd/vaxpulse migrate
  go run ./cmd/vaxpulse migrate --print`,
	RunE: runMigrate,
}

var migratePrint bool

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().BoolVar(&migratePrint, "print", false, "적용하지 않고 스키마만 출력")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if migratePrint {
		fmt.Print(store.Schema())
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.HasDatabase() {
		return fmt.Errorf("DATABASE_URL is required for migrate")
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := store.Migrate(ctx, db.Pool); err != nil {
		PrintError("Migration failed")
		return err
	}

	log.Info("Schema applied")
	PrintSuccess("Migrations applied successfully.")
	return nil
}
