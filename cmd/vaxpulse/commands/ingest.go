package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/vaxpulse/internal/external/owid"
	"github.com/wonny/vaxpulse/internal/store"
	"github.com/wonny/vaxpulse/pkg/database"
	"github.com/wonny/vaxpulse/pkg/httputil"
	"github.com/wonny/vaxpulse/pkg/logger"
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Primary store 일괄 적재 (offline batch)",
	Long: `Vaccination / manufacturer CSV를 읽어 primary store를 다시 적재합니다.

이 명령어는:
- 파일 경로 또는 http(s) URL에서 CSV 로드
- 필수 컬럼 검증, 잘못된 행은 제외
- 하나의 트랜잭션에서 TRUNCATE + COPY (여러 번 실행해도 같은 결과)

Example:
  go run ./cmd/vaxpulse ingest
  go run ./cmd/vaxpulse ingest --vaccinations data/vaccinations.csv --manufacturers data/vaccinations-by-manufacturer.csv
  go run ./cmd/vaxpulse ingest --dry-run`,
	RunE: runIngest,
}

var (
	ingestVaccinations  string
	ingestManufacturers string
	ingestDryRun        bool
)

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestVaccinations, "vaccinations", "", "vaccinations CSV 경로 또는 URL (default: EXTERNAL_SOURCE_URL)")
	ingestCmd.Flags().StringVar(&ingestManufacturers, "manufacturers", "", "by-manufacturer CSV 경로 또는 URL (optional)")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "파싱만 하고 적재하지 않음")
}

func runIngest(cmd *cobra.Command, args []string) error {
	start := time.Now()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !ingestDryRun && !cfg.HasDatabase() {
		return fmt.Errorf("DATABASE_URL is required for ingest")
	}

	log := logger.New(cfg)
	httpClient := httputil.New(cfg, log)

	vaccinationsSource := ingestVaccinations
	if vaccinationsSource == "" {
		vaccinationsSource = cfg.Source.ExternalURL
	}

	ctx := context.Background()

	PrintReportHeader("Primary Store Ingest", "", "")
	PrintKeyValue("Vaccinations", vaccinationsSource, 13)
	if ingestManufacturers != "" {
		PrintKeyValue("Manufacturers", ingestManufacturers, 13)
	}
	PrintSeparator()

	// 1. Parse vaccinations
	vaccinations, err := readPayload(ctx, httpClient, vaccinationsSource, owid.Parse)
	if err != nil {
		return fmt.Errorf("read vaccinations: %w", err)
	}
	PrintSuccess(fmt.Sprintf("Parsed %s vaccination rows (%d dropped)",
		FormatCount(int64(len(vaccinations.Rows))), vaccinations.Dropped))

	// 2. Parse manufacturers (optional)
	var manufacturers *owid.ManufacturerPayload
	if ingestManufacturers != "" {
		manufacturers, err = readPayload(ctx, httpClient, ingestManufacturers, owid.ParseManufacturers)
		if err != nil {
			return fmt.Errorf("read manufacturers: %w", err)
		}
		PrintSuccess(fmt.Sprintf("Parsed %s manufacturer rows (%d dropped)",
			FormatCount(int64(len(manufacturers.Rows))), manufacturers.Dropped))
	}

	if ingestDryRun {
		PrintInfo(fmt.Sprintf("Dry run: %d countries, nothing written", len(store.Locations(vaccinations.Rows))))
		return nil
	}

	// 3. Reload primary store
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	result, err := store.NewLoader(db.Pool, log).Reload(ctx, vaccinationsSource, vaccinations, manufacturers)
	if err != nil {
		PrintError("Ingest failed")
		return err
	}

	PrintSeparator()
	PrintKeyValue("Locations", FormatCount(result.Locations), 13)
	PrintKeyValue("Vaccinations", FormatCount(result.Vaccinations), 13)
	PrintKeyValue("Manufacturers", FormatCount(result.Manufacturers), 13)
	fmt.Println()
	PrintSuccess(fmt.Sprintf("Ingest complete in %.2fs", time.Since(start).Seconds()))
	return nil
}

// readPayload opens a local file or downloads a URL and parses it
func readPayload[T any](ctx context.Context, client *httputil.Client, location string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T

	body, err := openLocation(ctx, client, location)
	if err != nil {
		return zero, err
	}
	defer body.Close()

	return parse(body)
}

func openLocation(ctx context.Context, client *httputil.Client, location string) (io.ReadCloser, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", location, err)
		}
		return f, nil
	}

	resp, err := client.Get(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", location, err)
	}
	if !httputil.IsSuccess(resp.StatusCode) {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status code %d", location, resp.StatusCode)
	}
	return resp.Body, nil
}
