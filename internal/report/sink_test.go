package report

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erpsync/internal/reconcile"
)

func fixedSink(t *testing.T, c Compression) *Sink {
	t.Helper()
	s := NewSink(t.TempDir(), c)
	s.now = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }
	return s
}

func sampleReport() *reconcile.BatchReport {
	r := reconcile.NewBatchReport("product.template", "run-1")
	r.Add(reconcile.Outcome{Key: "A1", Status: reconcile.Updated, TargetID: 3})
	r.Add(reconcile.Outcome{Key: "", Status: reconcile.Skipped, Code: "MISSING_KEY", Reason: "missing key"})
	r.Add(reconcile.Outcome{Key: "B2", Status: reconcile.Failed, Code: "UNMAPPED_CODE", Err: errors.New("uom code \"XX\"\nis not mapped")})
	r.Finish()
	return r
}

func TestSink_WritesNonSuccessRows(t *testing.T) {
	s := fixedSink(t, CompressionNone)

	path, err := s.Write(context.Background(), "products", sampleReport())
	require.NoError(t, err)
	assert.Equal(t, "products-20250304-050607.csv", filepath.Base(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, []string{"run-1", "product.template", "", "skipped", "MISSING_KEY", "missing key"}, rows[1])
	assert.Equal(t, []string{"run-1", "product.template", "B2", "failed", "UNMAPPED_CODE", `uom code "XX" is not mapped`}, rows[2])
}

func TestSink_EmptyRunWritesNothing(t *testing.T) {
	s := fixedSink(t, CompressionNone)

	ok := reconcile.NewBatchReport("res.partner", "run-2")
	ok.Add(reconcile.Outcome{Key: "CL1", Status: reconcile.Created})

	path, err := s.Write(context.Background(), "partners", ok, nil)
	require.NoError(t, err)
	assert.Empty(t, path)

	entries, err := os.ReadDir(s.dir)
	if err == nil {
		assert.Empty(t, entries)
	}
}

func TestSink_Zstd(t *testing.T) {
	s := fixedSink(t, CompressionZstd)

	path, err := s.WriteTable(context.Background(), "pricelist-duplicates",
		[]string{"group", "keep", "remove"},
		[][]string{{"variant/1/10/1", "7", "8"}})
	require.NoError(t, err)
	assert.Equal(t, "pricelist-duplicates-20250304-050607.csv.zst", filepath.Base(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec, err := zstd.NewReader(f)
	require.NoError(t, err)
	defer dec.Close()

	rows, err := csv.NewReader(dec).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"group", "keep", "remove"}, {"variant/1/10/1", "7", "8"}}, rows)
}
