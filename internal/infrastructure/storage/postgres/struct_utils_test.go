package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type auditFields struct {
	UpdatedAt time.Time `db:"fechamod"`
}

type mockRow struct {
	auditFields
	Code     string  `db:"idarticulo"`
	Name     string  `db:"descripcion"`
	Price    float64 `db:"precio1"`
	Ignored  string  `db:"-"`
	Untagged string
}

type pointerEmbed struct {
	*auditFields
	Code string `db:"codigo"`
}

func TestExtractDBColumns(t *testing.T) {
	cols := ExtractDBColumns[mockRow]()
	assert.Equal(t, []string{"fechamod", "idarticulo", "descripcion", "precio1"}, cols)

	assert.Equal(t, []string{"codigo"}, ExtractDBColumns[*pointerEmbed]()[1:])
	assert.Nil(t, ExtractDBColumns[int]())
}

func TestStructToMap(t *testing.T) {
	now := time.Now().UTC()
	row := mockRow{
		auditFields: auditFields{UpdatedAt: now},
		Code:        "A1",
		Name:        "Drill",
		Price:       12.5,
		Ignored:     "x",
	}

	m := StructToMap(&row)
	require.Len(t, m, 4)
	assert.Equal(t, now, m["fechamod"])
	assert.Equal(t, "A1", m["idarticulo"])
	assert.Equal(t, 12.5, m["precio1"])
	assert.NotContains(t, m, "Untagged")

	assert.Nil(t, StructToMap(42))
	assert.Nil(t, StructToMap((*mockRow)(nil)))
}

func TestStructToMap_NilEmbeddedPointer(t *testing.T) {
	m := StructToMap(pointerEmbed{Code: "CL1"})
	assert.Equal(t, map[string]any{"codigo": "CL1"}, m)
}
