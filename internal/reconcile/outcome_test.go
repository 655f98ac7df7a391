package reconcile

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"erpsync/internal/directory"
)

func TestKey(t *testing.T) {
	assert.Equal(t, NaturalKey("A1"), Key(" A1 "))
	assert.Equal(t, NaturalKey("4/A1/1"), Key("4", "A1", "1"))
	assert.True(t, Key("4", " ", "1").IsEmpty())
	assert.True(t, Key().IsEmpty())
}

func TestBatchReport_MergeAndNonSuccess(t *testing.T) {
	a := NewBatchReport("prices", "run")
	a.Add(Outcome{Key: "1/A", Status: Created})
	a.Add(Outcome{Key: "1/B", Status: Skipped, Reason: "price is not positive"})
	a.Finish()

	b := NewBatchReport("prices", "run")
	b.StartedAt = a.StartedAt.Add(-time.Second)
	b.Add(Outcome{Key: "2/A", Status: Failed, Err: errors.New("rejected")})
	b.Finish()

	a.Merge(b)
	a.Merge(nil)

	assert.Equal(t, Counts{Created: 1, Skipped: 1, Failed: 1}, a.Counts)
	assert.Equal(t, 3, a.Counts.Total())
	assert.Equal(t, b.StartedAt, a.StartedAt)

	bad := a.NonSuccess()
	assert.Len(t, bad, 2)
	assert.Equal(t, "price is not positive", bad[0].Message())
	assert.Equal(t, "rejected", bad[1].Message())
	assert.Contains(t, a.Summary(), "failed")
}

func TestDiff(t *testing.T) {
	current := directory.FieldMap{"name": "Drill", "uom_id": []any{float64(1), "Units"}, "list_price": float64(10)}
	desired := directory.FieldMap{"name": "Drill", "uom_id": int64(1), "list_price": 12.5, "x_tasa_iva": 21.0}

	assert.Equal(t, directory.FieldMap{"list_price": 12.5, "x_tasa_iva": 21.0}, Diff(current, desired))
}
