package reaction

import (
	_ "embed"
	"sort"
	"strings"
	"unicode"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

//go:embed reactions.toml
var defaultCatalogTOML []byte

const keySep = "-"

type (
	Visualization struct {
		Template     string          `toml:"template" json:"template"`
		DurationMS   int             `toml:"duration_ms" json:"durationMs"`
		Colors       []string        `toml:"colors" json:"colors"`
		Effects      map[string]bool `toml:"effects" json:"effects"`
		ProductModel string          `toml:"product_model" json:"productModel,omitempty"`
	}

	Reaction struct {
		Key           string        `toml:"key" json:"key,omitempty"`
		Possible      bool          `toml:"-" json:"possible"`
		Type          string        `toml:"type" json:"reactionType,omitempty"`
		Explanation   string        `toml:"explanation" json:"explanation"`
		Products      []string      `toml:"products" json:"products"`
		WhyNoReaction string        `toml:"why_no_reaction" json:"whyNoReaction,omitempty"`
		Visualization Visualization `toml:"visualization" json:"visualization"`
	}

	// Catalog maps element combinations to the reaction they produce.
	Catalog struct {
		byKey map[string]Reaction
	}

	catalogFile struct {
		Reaction []Reaction `toml:"reaction"`
	}
)

// NoReaction is returned for combinations the catalog does not know.
func NoReaction() Reaction {
	return Reaction{
		Possible:      false,
		Products:      []string{},
		Explanation:   "Under normal conditions these elements do not react with each other or form a stable compound.",
		WhyNoReaction: "There is not enough energy or compatible valence for a chemical bond.",
		Visualization: Visualization{
			Template:   "none",
			DurationMS: 1500,
			Colors:     []string{"#cccccc"},
			Effects:    map[string]bool{"bubbles": false, "flash": false, "crystals": false},
		},
	}
}

// Key normalizes element symbols ("o", " H ") and joins them in sorted order.
// Repeated symbols count once. Blank symbols are ignored.
func Key(symbols []string) string {
	seen := make(map[string]bool, len(symbols))
	norm := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = normalizeSymbol(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		norm = append(norm, s)
	}
	sort.Strings(norm)
	return strings.Join(norm, keySep)
}

func normalizeSymbol(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	r := []rune(strings.ToLower(s))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func NewCatalog(reactions ...Reaction) (*Catalog, error) {
	cat := &Catalog{byKey: make(map[string]Reaction, len(reactions))}
	for _, r := range reactions {
		if r.Key == "" {
			return nil, errors.New("reaction without key")
		}
		key := Key(strings.Split(r.Key, keySep))
		if key != r.Key {
			return nil, errors.Errorf("reaction key %q is not canonical, want %q", r.Key, key)
		}
		if _, dup := cat.byKey[key]; dup {
			return nil, errors.Errorf("duplicate reaction %q", key)
		}
		r.Possible = true
		cat.byKey[key] = r
	}
	return cat, nil
}

// ParseCatalog decodes a TOML catalog made of [[reaction]] tables.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, errors.Wrap(err, "decoding reaction catalog")
	}
	return NewCatalog(f.Reaction...)
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	cat, err := ParseCatalog(defaultCatalogTOML)
	if err != nil {
		panic(err)
	}
	return cat
}

// Lookup returns the reaction between the given elements, or NoReaction.
func (c *Catalog) Lookup(symbols []string) Reaction {
	if r, ok := c.byKey[Key(symbols)]; ok {
		return r
	}
	return NoReaction()
}

func (c *Catalog) Len() int { return len(c.byKey) }
