package core

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseNumber(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		in   string
		want float64
	}{
		{in: "", want: nan}, // missing
		{in: `null`, want: 0},
		{in: `80`, want: 80},
		{in: `-3.5`, want: -3.5},
		{in: `true`, want: 1},
		{in: `false`, want: 0},
		{in: `"90"`, want: 90},
		{in: `" 12.5 "`, want: 12.5},
		{in: `""`, want: 0},
		{in: `"   "`, want: 0},
		{in: `"1e3"`, want: 1000},
		{in: `".5"`, want: 0.5},
		{in: `"0x10"`, want: 16},
		{in: `"0b101"`, want: 5},
		{in: `"0o17"`, want: 15},
		{in: `"-0x10"`, want: nan},
		{in: `"0x"`, want: nan},
		{in: `"0x1p4"`, want: nan},
		{in: `"1_000"`, want: nan},
		{in: `"abc"`, want: nan},
		{in: `"NaN"`, want: nan},
		{in: `"Infinity"`, want: nan},
		{in: `[]`, want: 0},
		{in: `[7]`, want: 7},
		{in: `["8"]`, want: 8},
		{in: `[null]`, want: 0},
		{in: `[[2]]`, want: 2},
		{in: `[true]`, want: nan},
		{in: `[1, 2]`, want: nan},
		{in: `{}`, want: nan},
		{in: `{"a": 1}`, want: nan},
		{in: `not json`, want: nan},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var raw json.RawMessage
			if tt.in != "" {
				raw = json.RawMessage(tt.in)
			}
			got := ParseNumber(raw)
			if math.IsNaN(tt.want) {
				assert.True(t, math.IsNaN(got), "ParseNumber(%s) = %v, want NaN", tt.in, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{in: ""},
		{in: `null`},
		{in: `false`},
		{in: `0`},
		{in: `""`},
		{in: `true`, want: true},
		{in: `1`, want: true},
		{in: `-2`, want: true},
		{in: `"yes"`, want: true},
		{in: `"false"`, want: true},
		{in: `[]`, want: true},
		{in: `{}`, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var raw json.RawMessage
			if tt.in != "" {
				raw = json.RawMessage(tt.in)
			}
			assert.Equal(t, tt.want, Truthy(raw))
		})
	}
}

func TestDocument_Decode(t *testing.T) {
	doc := Document{ID: "d1", Fields: map[string]json.RawMessage{"name": json.RawMessage(`"Ada"`), "age": json.RawMessage(`"x"`)}}

	name := "unset"
	assert.NoError(t, doc.Decode("missing", &name))
	assert.Equal(t, "unset", name)
	assert.NoError(t, doc.Decode("name", &name))
	assert.Equal(t, "Ada", name)

	var age int
	assert.Error(t, doc.Decode("age", &age))
	assert.True(t, math.IsNaN(doc.Number("age")))
	assert.True(t, doc.Has("age"))
	assert.False(t, doc.Has("missing"))
}
