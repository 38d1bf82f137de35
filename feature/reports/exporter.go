package reports

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"recon-engine/core/recon"
	"recon-engine/core/storage"

	"github.com/minio/minio-go/v7"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Format selects the rendering of an exported report.
type Format string

const (
	FormatText Format = "text"
	FormatXLSX Format = "xlsx"
)

// ParseFormat maps a query value to a Format, defaulting to text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// ContentType returns the MIME type of the rendering.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/plain; charset=utf-8"
}

// Ext returns the file extension of the rendering.
func (f Format) Ext() string {
	if f == FormatXLSX {
		return "xlsx"
	}
	return "txt"
}

// Exporter renders reports and archives them to object storage.
type Exporter struct {
	client storage.Client
	bucket string
	logger *zap.Logger
}

// NewExporter creates an exporter. The client may be nil when no storage is
// configured; rendering still works, archiving fails.
func NewExporter(client storage.Client, bucket string, logger *zap.Logger) *Exporter {
	return &Exporter{client: client, bucket: bucket, logger: logger}
}

// Render produces the report bytes in the requested format.
func (e *Exporter) Render(report *recon.Report, format Format) ([]byte, error) {
	switch format {
	case FormatXLSX:
		buf, err := renderXLSX(report)
		if err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return []byte(report.Format()), nil
	}
}

// renderXLSX lays the report out on a single worksheet: header block,
// statistics table, then one titled block per section.
func renderXLSX(report *recon.Report) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Report"
	f.SetSheetName("Sheet1", sheet)

	row := 1
	set := func(col string, v any) {
		_ = f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, row), v)
	}

	set("A", "Reconciliation Report")
	set("B", string(report.Kind))
	row++
	set("A", "Generated")
	set("B", report.GeneratedAt.Format(time.RFC3339))
	row++
	set("A", "Policy")
	set("B", report.PolicyName)
	row += 2

	set("A", "Statistics")
	row++
	for _, s := range report.Stats {
		set("A", s.Key)
		set("B", s.Value)
		row++
	}

	for _, sec := range report.Sections {
		row++
		set("A", sec.Title)
		row++
		for _, line := range strings.Split(strings.TrimRight(sec.Body, "\n"), "\n") {
			set("A", line)
			row++
		}
	}

	return f.WriteToBuffer()
}

// Archive renders the report and uploads it to the configured bucket,
// creating the bucket on first use. Returns the object name.
func (e *Exporter) Archive(ctx context.Context, report *recon.Report, format Format) (string, error) {
	if e.client == nil {
		return "", fmt.Errorf("no storage configured")
	}

	data, err := e.Render(report, format)
	if err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	exists, err := e.client.BucketExists(ctx, e.bucket)
	if err != nil {
		return "", fmt.Errorf("failed to check bucket %s: %w", e.bucket, err)
	}
	if !exists {
		if err := e.client.MakeBucket(ctx, e.bucket, minio.MakeBucketOptions{}); err != nil {
			return "", fmt.Errorf("failed to create bucket %s: %w", e.bucket, err)
		}
	}

	objectName := fmt.Sprintf("reports/%s/%s.%s",
		strings.ToLower(string(report.Kind)),
		report.GeneratedAt.Format("20060102T150405Z"),
		format.Ext())

	_, err = e.client.PutObject(ctx, e.bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: format.ContentType()})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectName, err)
	}

	e.logger.Info("Report archived",
		zap.String("bucket", e.bucket),
		zap.String("object", objectName),
		zap.Int("bytes", len(data)))
	return objectName, nil
}

// List returns the object names of previously archived reports.
func (e *Exporter) List(ctx context.Context) ([]string, error) {
	if e.client == nil {
		return nil, fmt.Errorf("no storage configured")
	}

	var names []string
	for info := range e.client.ListObjects(ctx, e.bucket, minio.ListObjectsOptions{
		Prefix:    "reports/",
		Recursive: true,
	}) {
		if info.Err != nil {
			return nil, fmt.Errorf("failed to list reports: %w", info.Err)
		}
		names = append(names, info.Key)
	}
	return names, nil
}
