package hclconfig

import (
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestCtyToNative(t *testing.T) {
	testCases := []struct {
		name string
		in   cty.Value
		want any
	}{
		{name: "null", in: cty.NullVal(cty.String), want: nil},
		{name: "unknown", in: cty.UnknownVal(cty.Number), want: nil},
		{name: "string", in: cty.StringVal("x"), want: "x"},
		{name: "number", in: cty.NumberIntVal(3), want: 3.0},
		{name: "bool", in: cty.True, want: true},
		{name: "set", in: cty.SetVal([]cty.Value{cty.StringVal("a")}), want: []any{"a"}},
		{name: "empty list", in: cty.ListValEmpty(cty.String), want: []any{}},
		{name: "map", in: cty.MapVal(map[string]cty.Value{"k": cty.NumberFloatVal(0.5)}), want: map[string]any{"k": 0.5}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ctyToNative(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvalMap_RejectsNonObject(t *testing.T) {
	_, err := evalMap(hcl.StaticExpr(cty.NumberIntVal(1), hcl.Range{}), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected an object")
}
