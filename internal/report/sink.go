// Package report writes the outcomes of a run to disk so skipped and failed
// records can be reviewed after the fact.
package report

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"erpsync/internal/reconcile"
	"erpsync/pkg/logger"
)

// Compression selects the on-disk encoding of report files.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
)

// Columns of an outcome report.
var Columns = []string{"run_id", "kind", "key", "status", "code", "message"}

// Sink writes report files into a directory.
type Sink struct {
	dir         string
	compression Compression
	now         func() time.Time
}

// NewSink creates a sink. The directory is created on first write.
func NewSink(dir string, compression Compression) *Sink {
	if compression == "" {
		compression = CompressionNone
	}
	return &Sink{dir: dir, compression: compression, now: time.Now}
}

// Write stores one row per skipped or failed outcome of the given reports and
// returns the file path. When every outcome succeeded no file is written and
// the path is empty.
func (s *Sink) Write(ctx context.Context, job string, reports ...*reconcile.BatchReport) (string, error) {
	var rows [][]string
	for _, r := range reports {
		if r == nil {
			continue
		}
		for _, o := range r.NonSuccess() {
			rows = append(rows, []string{
				r.RunID,
				r.Kind,
				o.Key.String(),
				string(o.Status),
				o.Code,
				oneLine(o.Message()),
			})
		}
	}
	if len(rows) == 0 {
		return "", nil
	}
	return s.WriteTable(ctx, job, Columns, rows)
}

// WriteTable stores arbitrary tabular data under <dir>/<name>-<timestamp>.csv.
func (s *Sink) WriteTable(ctx context.Context, name string, header []string, rows [][]string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	path := filepath.Join(s.dir, s.fileName(name))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}

	if err := s.encode(f, header, rows); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write report %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close report %s: %w", path, err)
	}

	logger.Info(ctx, "report written", "path", path, "rows", len(rows))
	return path, nil
}

func (s *Sink) fileName(name string) string {
	base := fmt.Sprintf("%s-%s.csv", name, s.now().Format("20060102-150405"))
	if s.compression == CompressionZstd {
		return base + ".zst"
	}
	return base
}

func (s *Sink) encode(w io.Writer, header []string, rows [][]string) error {
	if s.compression == CompressionZstd {
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("create zstd encoder: %w", err)
		}
		if err := writeCSV(enc, header, rows); err != nil {
			_ = enc.Close()
			return err
		}
		return enc.Close()
	}

	bw := bufio.NewWriter(w)
	if err := writeCSV(bw, header, rows); err != nil {
		return err
	}
	return bw.Flush()
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
