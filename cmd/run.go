package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"recon-engine/core/config"
	"recon-engine/core/logger"
	"recon-engine/core/recon"
	"recon-engine/core/storage"
	"recon-engine/feature/reports"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	internalFile     string
	externalFile     string
	reportKind       string
	exportFormat     string
	archiveReport    bool
	matchPolicy      string
	reconPolicy      string
	resolutionPolicy string
)

// runCmd performs a one-shot reconciliation over two CSV files.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile two CSV files and print a report",
	Long: `Runs a single reconciliation over an internal ledger CSV and an external
settlement feed CSV, prints the requested report, and optionally archives it.

Internal CSV columns:
  transaction_id,order_ref,amount,currency,payment_method,status,timestamp,counterparty_id

External CSV columns:
  reference_id,amount,currency,settled_at,description

Timestamps are RFC 3339. The first row is treated as a header.

Examples:
  # Reconcile and print the summary report
  recon-engine run --internal ledger.csv --external feed.csv

  # Flexible matching with a discrepancy report
  recon-engine run --internal ledger.csv --external feed.csv \
    --match-policy flexible --report discrepancy

  # Archive an XLSX detailed report to object storage
  recon-engine run --internal ledger.csv --external feed.csv \
    --report detailed --format xlsx --archive`,
	RunE: runReconcile,
}

func init() {
	runCmd.Flags().StringVar(&internalFile, "internal", "", "Internal ledger CSV file (required)")
	runCmd.Flags().StringVar(&externalFile, "external", "", "External settlement feed CSV file (required)")
	runCmd.Flags().StringVar(&reportKind, "report", "summary", "Report kind (summary, detailed, discrepancy, exception, trend_analysis, audit_trail, performance)")
	runCmd.Flags().StringVar(&exportFormat, "format", "text", "Report format (text, xlsx)")
	runCmd.Flags().BoolVar(&archiveReport, "archive", false, "Archive the report to object storage")
	runCmd.Flags().StringVar(&matchPolicy, "match-policy", "", "Matching policy (exact, standard, flexible); defaults to configuration")
	runCmd.Flags().StringVar(&reconPolicy, "reconciliation-policy", "", "Grading policy (standard, flexible); defaults to configuration")
	runCmd.Flags().StringVar(&resolutionPolicy, "resolution-policy", "", "Resolution policy (automatic, manual, rules); defaults to configuration")
	_ = runCmd.MarkFlagRequired("internal")
	_ = runCmd.MarkFlagRequired("external")

	RootCmd.AddCommand(runCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer l.Sync()

	// Flags override configured policy names.
	policies := cfg.Recon
	if matchPolicy != "" {
		policies.MatchPolicy = matchPolicy
	}
	if reconPolicy != "" {
		policies.ReconciliationPolicy = reconPolicy
	}
	if resolutionPolicy != "" {
		policies.ResolutionPolicy = resolutionPolicy
	}

	engine := recon.NewEngine(l)
	defer engine.Close()
	if err := policies.Apply(engine); err != nil {
		return err
	}

	internals, err := readInternalCSV(internalFile)
	if err != nil {
		return fmt.Errorf("failed to read internal records: %w", err)
	}
	externals, err := readExternalCSV(externalFile)
	if err != nil {
		return fmt.Errorf("failed to read external records: %w", err)
	}

	acceptedIn, err := engine.IngestInternal(internals)
	if err != nil {
		return err
	}
	acceptedEx, err := engine.IngestExternal(externals)
	if err != nil {
		return err
	}
	l.Info("Records ingested",
		zap.Int("internal", acceptedIn),
		zap.Int("external", acceptedEx),
		zap.Int("internal_dropped", len(internals)-acceptedIn),
		zap.Int("external_dropped", len(externals)-acceptedEx),
	)

	handle, err := engine.StartRun(ctx)
	if err != nil {
		return err
	}
	summary, err := handle.Wait(ctx)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}
	l.Info("Reconciliation completed",
		zap.String("run_id", summary.RunID.String()),
		zap.Int("matches", summary.MatchedCount),
		zap.Int("discrepancies", summary.DiscrepancyCount),
		zap.Float64("match_rate", summary.MatchRate),
	)

	kind, err := recon.ParseReportKind(reportKind)
	if err != nil {
		return err
	}
	format, err := reports.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
	report, err := engine.Report(kind)
	if err != nil {
		return err
	}

	if format == reports.FormatText {
		fmt.Print(report.Format())
	}

	if archiveReport || format != reports.FormatText {
		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to connect to storage: %w", err)
		}
		exporter := reports.NewExporter(client, cfg.Storage.Bucket, l)

		if archiveReport {
			objectName, err := exporter.Archive(ctx, report, format)
			if err != nil {
				return err
			}
			l.Info("Report archived", zap.String("object", objectName))
		} else {
			// Non-text formats without --archive land next to the input files.
			data, err := exporter.Render(report, format)
			if err != nil {
				return err
			}
			outFile := fmt.Sprintf("%s-report.%s", strings.ToLower(string(kind)), format.Ext())
			if err := os.WriteFile(outFile, data, 0o644); err != nil {
				return err
			}
			l.Info("Report written", zap.String("file", outFile))
		}
	}

	return nil
}

// readInternalCSV loads internal ledger records from a headered CSV file.
func readInternalCSV(path string) ([]recon.InternalRecord, error) {
	rows, err := readCSV(path, 8)
	if err != nil {
		return nil, err
	}

	records := make([]recon.InternalRecord, 0, len(rows))
	for i, row := range rows {
		amount, err := decimal.NewFromString(row[2])
		if err != nil {
			return nil, fmt.Errorf("row %d: bad amount %q: %w", i+2, row[2], err)
		}
		ts, err := time.Parse(time.RFC3339, row[6])
		if err != nil {
			return nil, fmt.Errorf("row %d: bad timestamp %q: %w", i+2, row[6], err)
		}
		records = append(records, recon.InternalRecord{
			TransactionID:  row[0],
			OrderRef:       row[1],
			Amount:         amount,
			Currency:       row[3],
			PaymentMethod:  row[4],
			Status:         row[5],
			Timestamp:      ts,
			CounterpartyID: row[7],
		})
	}
	return records, nil
}

// readExternalCSV loads settlement feed records from a headered CSV file.
func readExternalCSV(path string) ([]recon.ExternalRecord, error) {
	rows, err := readCSV(path, 5)
	if err != nil {
		return nil, err
	}

	records := make([]recon.ExternalRecord, 0, len(rows))
	for i, row := range rows {
		amount, err := decimal.NewFromString(row[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: bad amount %q: %w", i+2, row[1], err)
		}
		settled, err := time.Parse(time.RFC3339, row[3])
		if err != nil {
			return nil, fmt.Errorf("row %d: bad settled_at %q: %w", i+2, row[3], err)
		}
		records = append(records, recon.ExternalRecord{
			ReferenceID: row[0],
			Amount:      amount,
			Currency:    row[2],
			SettledAt:   settled,
			Description: row[4],
		})
	}
	return records, nil
}

// readCSV reads all data rows of a headered CSV file with a fixed column count.
func readCSV(path string, fields int) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = fields

	// Skip header
	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%s: empty file", path)
		}
		return nil, err
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
