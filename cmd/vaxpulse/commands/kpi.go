package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/vaxpulse/internal/contracts"
	"github.com/wonny/vaxpulse/internal/kpi"
)

// kpiCmd represents the kpi command
var kpiCmd = &cobra.Command{
	Use:   "kpi",
	Short: "KPI 단건 계산",
	Long: `KPI 하나를 동기적으로 계산해 출력합니다 (--output table|json|yaml).
API 서버와 같은 primary/fallback 규칙을 사용합니다.

Subcommands:
  countries              - 국가 목록
  growth <country>       - 월말 누적 + MoM 성장률
  share <country>        - 제조사 점유율 (top 15)
  summary <country>      - KPI 요약
  quality <country>      - 데이터 품질
  world                  - 국가별 지표

Example:
  go run ./cmd/vaxpulse kpi growth Wakanda
  go run ./cmd/vaxpulse kpi world --metric latest_growth --from 2022-01-01`,
}

var (
	outputFormat string

	worldMetric string
	worldFrom   string
	worldTo     string
	worldTop    int
)

func init() {
	rootCmd.AddCommand(kpiCmd)

	kpiCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "출력 형식 (table|json|yaml)")

	kpiCmd.AddCommand(&cobra.Command{
		Use:   "countries",
		Short: "국가 목록",
		Args:  cobra.NoArgs,
		RunE:  withApp(runCountries),
	})
	kpiCmd.AddCommand(&cobra.Command{
		Use:   "growth <country>",
		Short: "월말 누적 + MoM 성장률",
		Args:  cobra.ExactArgs(1),
		RunE:  withApp(runGrowth),
	})
	kpiCmd.AddCommand(&cobra.Command{
		Use:   "share <country>",
		Short: "제조사 점유율 (최신 보고일 기준 top 15)",
		Args:  cobra.ExactArgs(1),
		RunE:  withApp(runShare),
	})
	kpiCmd.AddCommand(&cobra.Command{
		Use:   "summary <country>",
		Short: "KPI 요약",
		Args:  cobra.ExactArgs(1),
		RunE:  withApp(runSummary),
	})
	kpiCmd.AddCommand(&cobra.Command{
		Use:   "quality <country>",
		Short: "데이터 품질",
		Args:  cobra.ExactArgs(1),
		RunE:  withApp(runQuality),
	})

	worldCmd := &cobra.Command{
		Use:   "world",
		Short: "국가별 지표 (world map)",
		Args:  cobra.NoArgs,
		RunE:  withApp(runWorld),
	}
	worldCmd.Flags().StringVar(&worldMetric, "metric", string(kpi.MetricLatestTotal), "latest_total | latest_growth")
	worldCmd.Flags().StringVar(&worldFrom, "from", "", "시작일 (YYYY-MM-DD)")
	worldCmd.Flags().StringVar(&worldTo, "to", "", "종료일 (YYYY-MM-DD)")
	worldCmd.Flags().IntVar(&worldTop, "top", 20, "출력할 상위 국가 수 (0 = 전체)")
	kpiCmd.AddCommand(worldCmd)
}

// withApp wires the components once per invocation
func withApp(run func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		return run(cmd.Context(), a, args)
	}
}

func runCountries(ctx context.Context, a *app, args []string) error {
	countries, origin, err := a.reporter.Countries(ctx)
	if err != nil {
		return err
	}

	return render(countries, func() {
		PrintReportHeader("Countries", "", origin)
		PrintList(countries)
		fmt.Println()
		PrintInfo(fmt.Sprintf("%d countries", len(countries)))
	})
}

func runGrowth(ctx context.Context, a *app, args []string) error {
	points, origin, err := a.reporter.MonthlyGrowth(ctx, args[0])
	if err != nil {
		return err
	}

	return render(points, func() {
		PrintReportHeader("Monthly Growth", args[0], origin)
		if len(points) == 0 {
			PrintWarning("No data")
			return
		}

		widths := []int{12, 18, 12}
		PrintTableHeader([]string{"Month", "Total", "MoM"}, widths)
		for _, p := range points {
			PrintTableRow([]string{
				p.Month.Format(contracts.DateLayout),
				FormatCount(p.Total),
				FormatRate(p.GrowthRate),
			}, widths)
		}
	})
}

func runShare(ctx context.Context, a *app, args []string) error {
	points, origin, err := a.reporter.ManufacturerShare(ctx, args[0])
	if err != nil {
		return err
	}

	return render(points, func() {
		PrintReportHeader("Manufacturer Share", args[0], origin)
		if len(points) == 0 {
			PrintWarning("No data")
			return
		}

		var sum int64
		for _, p := range points {
			sum += p.Total
		}

		widths := []int{28, 18, 8}
		PrintTableHeader([]string{"Vaccine", "Total", "Share"}, widths)
		for _, p := range points {
			share := "-"
			if sum > 0 {
				share = strconv.FormatFloat(float64(p.Total)/float64(sum)*100, 'f', 1, 64) + "%"
			}
			PrintTableRow([]string{p.Vaccine, FormatCount(p.Total), share}, widths)
		}
		fmt.Println()
		PrintInfo("As of " + points[0].AsOf.Format(contracts.DateLayout))
	})
}

func runSummary(ctx context.Context, a *app, args []string) error {
	summary, origin, err := a.reporter.Summary(ctx, args[0])
	if err != nil {
		return err
	}

	return render(summary, func() {
		PrintReportHeader("KPI Summary", args[0], origin)
		PrintKeyValue("Latest total", FormatOptionalCount(summary.LatestTotal), 14)
		PrintKeyValue("Latest MoM", FormatRate(summary.LatestGrowthRate), 14)
		PrintKeyValue("Peak MoM", FormatRate(summary.PeakGrowthRate), 14)
		PrintKeyValue("As of", FormatDate(summary.AsOf), 14)
	})
}

func runQuality(ctx context.Context, a *app, args []string) error {
	quality, origin, err := a.reporter.Quality(ctx, args[0])
	if err != nil {
		return err
	}

	lastUpdated, _, err := a.reporter.LastUpdated(ctx, args[0])
	if err != nil {
		return err
	}

	return render(qualityReport{QualitySummary: quality, LastUpdated: lastUpdated}, func() {
		PrintReportHeader("Data Quality", args[0], origin)
		PrintKeyValue("Observed months", strconv.Itoa(quality.ObservedMonths), 16)
		PrintKeyValue("Expected months", strconv.Itoa(quality.ExpectedMonths), 16)
		PrintKeyValue("Missing months", strconv.Itoa(quality.MissingMonths), 16)
		PrintKeyValue("Null rate", fmt.Sprintf("%.1f%%", quality.NullRateTotal*100), 16)
		PrintKeyValue("Last updated", FormatDate(lastUpdated), 16)
	})
}

func runWorld(ctx context.Context, a *app, args []string) error {
	from, err := parseDateFlag("from", worldFrom)
	if err != nil {
		return err
	}
	to, err := parseDateFlag("to", worldTo)
	if err != nil {
		return err
	}

	points, origin, err := a.reporter.WorldMap(ctx, worldMetric, from, to)
	if err != nil {
		return err
	}

	ranked := kpi.RankWorld(points)
	if worldTop > 0 && len(ranked) > worldTop {
		ranked = ranked[:worldTop]
	}

	return render(ranked, func() {
		PrintReportHeader("World Map ("+worldMetric+")", "", origin)
		if len(ranked) == 0 {
			PrintWarning("No data")
			return
		}

		widths := []int{4, 28, 6, 18}
		PrintTableHeader([]string{"#", "Country", "ISO", "Value"}, widths)
		for i, p := range ranked {
			value := FormatCount(int64(p.Value))
			if worldMetric == string(kpi.MetricLatestGrowth) {
				value = FormatRate(&p.Value)
			}
			PrintTableRow([]string{strconv.Itoa(i + 1), p.Country, p.IsoCode, value}, widths)
		}
	})
}

// qualityReport is the machine-readable output of "kpi quality"
type qualityReport struct {
	contracts.QualitySummary `yaml:",inline"`
	LastUpdated              *time.Time `json:"last_updated" yaml:"last_updated"`
}

func parseDateFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(contracts.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s date %q (expected YYYY-MM-DD)", name, value)
	}
	return t, nil
}
