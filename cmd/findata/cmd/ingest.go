package cmd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/wonny/findata/internal/domain/stock"
	"github.com/wonny/findata/internal/infra/external/alphavantage"
	"github.com/wonny/findata/internal/infra/file"
)

// ingestCmd 일봉 적재
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "일봉 데이터 적재",
	Long: `Alpha Vantage 또는 바 파일(csv, parquet, json)에서 일봉을 읽어 upsert합니다.
같은 데이터를 다시 적재해도 결과는 같습니다.

Examples:
  go run ./cmd/findata ingest                              # ALPHAVANTAGE_SYMBOLS, 최근 ALPHAVANTAGE_DAYS일
  go run ./cmd/findata ingest --symbols IBM,MSFT --days 30
  go run ./cmd/findata ingest --file bars.parquet --symbol IBM`,
	RunE: runIngest,
}

var ingestOpts struct {
	file    string
	symbol  string
	symbols string
	days    int
}

func init() {
	f := ingestCmd.Flags()
	f.StringVar(&ingestOpts.file, "file", "", "bar file to load (csv, parquet, json)")
	f.StringVar(&ingestOpts.symbol, "symbol", "", "symbol of the bars in --file")
	f.StringVar(&ingestOpts.symbols, "symbols", "", "comma-separated symbols to fetch (default ALPHAVANTAGE_SYMBOLS)")
	f.IntVar(&ingestOpts.days, "days", 0, "most recent days to keep per symbol (default ALPHAVANTAGE_DAYS)")
}

// validateIngest checks flag combinations before anything is opened
func validateIngest() error {
	if ingestOpts.file != "" {
		if ingestOpts.symbol == "" {
			return fmt.Errorf("--symbol is required with --file")
		}
		if !stock.ValidateSymbol(ingestOpts.symbol) {
			return fmt.Errorf("%w %q", stock.ErrInvalidSymbol, ingestOpts.symbol)
		}
		if ingestOpts.symbols != "" {
			return fmt.Errorf("--symbols cannot be combined with --file")
		}
		return nil
	}
	if ingestOpts.symbol != "" {
		return fmt.Errorf("--symbol is only used with --file; use --symbols")
	}
	if ingestOpts.days < 0 {
		return fmt.Errorf("--days must not be negative")
	}
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	if err := validateIngest(); err != nil {
		return err
	}

	ctx := cmd.Context()
	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Logger()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if ingestOpts.file != "" {
		bars, err := file.LoadBars(ingestOpts.file)
		if err != nil {
			return err
		}
		records := file.DailyRecords(ingestOpts.symbol, bars)

		n, err := a.svc.Ingest(ctx, records)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", ingestOpts.file, err)
		}
		logger.Info().
			Str("file", ingestOpts.file).
			Int("bars", len(bars)).
			Int("written", n).
			Msg("✅ Bar file ingested")
		return nil
	}

	av := cfg.AlphaVantage
	if av.APIKey == "" {
		return fmt.Errorf("ALPHAVANTAGE_API_KEY is required to fetch prices")
	}
	symbols := av.Symbols
	if ingestOpts.symbols != "" {
		symbols = splitSymbols(ingestOpts.symbols)
	}
	days := av.Days
	if ingestOpts.days > 0 {
		days = ingestOpts.days
	}

	results, err := a.svc.Sync(ctx, alphavantage.NewClient(av), symbols, days)
	for _, r := range results {
		if r.Err == nil {
			logger.Info().Str("symbol", r.Symbol).Int("fetched", r.Fetched).Int("written", r.Written).Msg("✅ Symbol ingested")
		}
	}
	return err
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
