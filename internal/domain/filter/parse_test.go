package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseItem(t *testing.T) {
	tests := []struct {
		in   string
		want Item
	}{
		{"moneda:eq:2", Item{Field: "moneda", Operator: Equal, Value: "2"}},
		{" precio1 : GTE : 10.5 ", Item{Field: "precio1", Operator: GreaterOrEqual, Value: "10.5"}},
		{"descripcion:contains:tornillo: M8", Item{Field: "descripcion", Operator: Contains, Value: "tornillo: M8"}},
		{"idfamilia:in:01, 02,,03", Item{Field: "idfamilia", Operator: InList, Value: []string{"01", "02", "03"}}},
		{"rutaimagen:null", Item{Field: "rutaimagen", Operator: IsNull}},
		{"rutaimagen:not_null:", Item{Field: "rutaimagen", Operator: IsNotNull}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseItem(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseItem_Errors(t *testing.T) {
	for _, in := range []string{
		"moneda",
		":eq:2",
		"moneda:like:2",
		"moneda:eq",
		"idfamilia:in: , ",
		"rutaimagen:null:x",
		"idfamilia:in_hierarchy:01",
	} {
		_, err := ParseItem(in)
		assert.Error(t, err, in)
	}
}

func TestParseItems(t *testing.T) {
	items, err := ParseItems([]string{"a:eq:1", "b:null"})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = ParseItems([]string{"a:eq:1", "b"})
	assert.Error(t, err)
}
