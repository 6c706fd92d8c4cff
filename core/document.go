package core

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrRankingUnsupported = errors.New("ranking not supported on this field")
)

type (
	// Document is a schemaless record: top-level field name -> JSON value.
	Document struct {
		ID     string
		Fields map[string]json.RawMessage
	}

	// Fields holds the top-level fields of a partial write. Values are JSON encoded by the store.
	Fields map[string]interface{}

	SetOptions struct {
		// Merge replaces only the named fields, keeping the others.
		// Without it the whole document is replaced.
		Merge bool
	}

	// DocumentStore is the persistence contract for per-user documents.
	DocumentStore interface {
		// Get returns ErrDocumentNotFound when the document does not exist.
		Get(ctx context.Context, collection, id string) (Document, error)
		// Set creates the document when it does not exist.
		Set(ctx context.Context, collection, id string, fields Fields, opts SetOptions) error
		// Update merges fields into an existing document, returning ErrDocumentNotFound when there is none.
		Update(ctx context.Context, collection, id string, fields Fields) error
	}

	// DocumentRanker lists the documents of a collection ordered by a numeric field, highest first.
	DocumentRanker interface {
		Rank(ctx context.Context, collection, field string, limit int) ([]Document, error)
	}
)

// Has reports whether the field is present.
func (d Document) Has(field string) bool {
	_, ok := d.Fields[field]
	return ok
}

// Decode unmarshals a single field into dst. Missing fields leave dst untouched.
func (d Document) Decode(field string, dst interface{}) error {
	raw, ok := d.Fields[field]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.Wrapf(err, "decoding field %q of document %q", field, d.ID)
	}
	return nil
}

// Number reads a field as a number, returning NaN when it is missing or not numeric.
func (d Document) Number(field string) float64 {
	return ParseNumber(d.Fields[field])
}

// EncodeFields JSON-encodes every value of fields.
func EncodeFields(fields Fields) (map[string]json.RawMessage, error) {
	encoded := make(map[string]json.RawMessage, len(fields))
	for name, val := range fields {
		raw, err := json.Marshal(val)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding field %q", name)
		}
		encoded[name] = raw
	}
	return encoded, nil
}

// MergeFields applies fields onto base, replacing the whole map when merge is false.
func MergeFields(base map[string]json.RawMessage, fields map[string]json.RawMessage, merge bool) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(base)+len(fields))
	if merge {
		for k, v := range base {
			out[k] = v
		}
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// ParseNumber coerces a stored JSON value to a number with the rules of JavaScript's Number():
// numbers as is, null and false are 0, true is 1, strings are trimmed then parsed
// (blank is 0, 0x/0o/0b prefixes allowed), an empty array is 0 and a single element array
// is its element. Objects, longer arrays, other strings and infinities are NaN.
// A missing value is NaN too, which is what marks a lesson score for repair.
func ParseNumber(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return math.NaN()
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return math.NaN()
	}
	return toNumber(v)
}

func toNumber(v interface{}) float64 {
	switch val := v.(type) {
	case nil:
		return 0
	case float64:
		return val
	case bool:
		if val {
			return 1
		}
		return 0
	case string:
		return parseNumericString(val)
	case []interface{}:
		switch len(val) {
		case 0:
			return 0
		case 1:
			// [x] converts through its string form
			switch elem := val[0].(type) {
			case nil:
				return 0
			case float64, string, []interface{}:
				return toNumber(elem)
			}
		}
		return math.NaN()
	default:
		return math.NaN()
	}
}

func parseNumericString(s string) float64 {
	s = CleanString(s)
	if s == "" {
		return 0
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return math.NaN()
			}
			return float64(n)
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || strings.ContainsAny(s, "xXpP_") {
		return math.NaN()
	}
	return f
}

// Truthy reports whether a stored JSON value is truthy in JavaScript terms:
// everything except a missing value, null, false, 0, NaN and "".
func Truthy(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		return val != ""
	default: // objects and arrays
		return true
	}
}
