// Command regionmatch matches a spreadsheet of region records against the
// reference catalog offline and writes the result workbook.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/garyellow/region-matcher/internal/buildinfo"
	"github.com/garyellow/region-matcher/internal/config"
	"github.com/garyellow/region-matcher/internal/logger"
	"github.com/garyellow/region-matcher/internal/matcher"
	"github.com/garyellow/region-matcher/internal/r2client"
	"github.com/garyellow/region-matcher/internal/region"
	"github.com/garyellow/region-matcher/internal/sheet"
)

// CLI flags
var (
	inFlag       = flag.String("in", "", "Input spreadsheet (.xlsx or .csv)")
	outFlag      = flag.String("out", "", "Output file (.xlsx or .csv, default: <in>-matched.xlsx)")
	catalogFlag  = flag.String("catalog", "", "Catalog JSON file, optionally zstd-compressed (default: embedded catalog)")
	workersFlag  = flag.Int("workers", 0, "Matching workers (0 = GOMAXPROCS)")
	chunkFlag    = flag.Int("chunk", 256, "Catalog leaves per work unit")
	uploadFlag   = flag.String("upload", "", "Also upload the result to R2 under this key")
	logLevelFlag = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	versionFlag  = flag.Bool("version", false, "Print version information and exit")
)

type options struct {
	in       string
	out      string
	catalog  string
	workers  int
	chunk    int
	uploadTo string
}

func main() {
	flag.Parse()
	if *versionFlag {
		fmt.Println(buildinfo.Get().String())
		return
	}
	if *inFlag == "" {
		_, _ = fmt.Fprintln(os.Stderr, "regionmatch: -in is required")
		flag.Usage()
		os.Exit(2)
	}

	log := logger.New(*logLevelFlag)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{
		in:       *inFlag,
		out:      *outFlag,
		catalog:  *catalogFlag,
		workers:  *workersFlag,
		chunk:    *chunkFlag,
		uploadTo: *uploadFlag,
	}

	summary, err := run(ctx, opts, log)
	if err != nil {
		log.WithError(err).Error("Matching failed")
		os.Exit(1)
	}

	fmt.Printf("✅ %d catalog rows, %d matched, %d need confirmation (avg score %.4f)\n",
		summary.Total, summary.Matched, summary.NeedsConfirmation, summary.AverageScore)
}

// run reads the input, matches it and writes the result. The result is
// uploaded to R2 when opts.uploadTo is set.
func run(ctx context.Context, opts options, log *logger.Logger) (matcher.Summary, error) {
	start := time.Now()

	inFormat, err := sheet.DetectFormat(opts.in)
	if err != nil {
		return matcher.Summary{}, err
	}
	out := opts.out
	if out == "" {
		out = defaultOutput(opts.in)
	}
	outFormat, err := sheet.DetectFormat(out)
	if err != nil {
		return matcher.Summary{}, fmt.Errorf("output: %w", err)
	}

	table, err := readTable(opts.in, inFormat)
	if err != nil {
		return matcher.Summary{}, err
	}
	log.WithFields(map[string]any{
		"file":    opts.in,
		"records": len(table.Records),
		"blank":   table.Blank,
	}).Info("Input loaded")

	var src region.Source = region.EmbeddedSource{}
	if opts.catalog != "" {
		src = region.FileSource{Path: opts.catalog}
	}
	catalog, err := src.Load(ctx)
	if err != nil {
		return matcher.Summary{}, fmt.Errorf("load catalog: %w", err)
	}
	if len(catalog.Dropped) > 0 {
		log.WithField("dropped", len(catalog.Dropped)).Warn("Catalog entries dropped while parsing")
	}

	workers := opts.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	m, err := matcher.New(catalog,
		matcher.WithWorkers(workers),
		matcher.WithChunkSize(opts.chunk),
		matcher.WithLogger(log),
	)
	if err != nil {
		return matcher.Summary{}, err
	}

	rows, err := m.BatchMatch(ctx, table.Records)
	if err != nil {
		return matcher.Summary{}, err
	}

	var buf bytes.Buffer
	switch outFormat {
	case sheet.FormatCSV:
		err = sheet.WriteCSV(&buf, rows)
	default:
		err = sheet.WriteXLSX(&buf, rows)
	}
	if err != nil {
		return matcher.Summary{}, fmt.Errorf("write result: %w", err)
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return matcher.Summary{}, fmt.Errorf("write result: %w", err)
	}

	summary := matcher.Summarize(rows)
	log.WithFields(map[string]any{
		"out":             out,
		"catalog_version": catalog.Version(),
		"matched":         summary.Matched,
		"duration_ms":     time.Since(start).Milliseconds(),
	}).Info("Result written")

	if opts.uploadTo != "" {
		if err := upload(ctx, opts.uploadTo, outFormat, &buf, log); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func readTable(path string, format sheet.Format) (*sheet.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return sheet.Read(f, format)
}

// defaultOutput turns "a/b.csv" into "a/b-matched.xlsx".
func defaultOutput(in string) string {
	ext := filepath.Ext(in)
	return in[:len(in)-len(ext)] + "-matched.xlsx"
}

// upload pushes the result to the bucket configured through REGION_R2_*.
func upload(ctx context.Context, key string, format sheet.Format, body io.Reader, log *logger.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.R2Configured() {
		return errors.New("upload requested but R2 is not configured")
	}

	client, err := r2client.New(ctx, r2client.Config{
		Endpoint:    cfg.R2Endpoint(),
		AccessKeyID: cfg.R2AccessKeyID,
		SecretKey:   cfg.R2SecretAccessKey,
		BucketName:  cfg.R2BucketName,
	})
	if err != nil {
		return fmt.Errorf("r2 client: %w", err)
	}

	contentType := "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	if format == sheet.FormatCSV {
		contentType = "text/csv; charset=utf-8"
	}
	etag, err := client.Upload(ctx, key, body, contentType)
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	log.WithField("key", key).WithField("etag", etag).Info("Result uploaded")
	return nil
}
