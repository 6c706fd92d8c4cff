package progress

import (
	"encoding/json"
	"math"

	"github.com/trezcool/ilmlab/core"
)

// Points is a score or an XP amount. Stored values are coerced with core.ParseNumber,
// so null is 0 and anything that does not convert to a finite number is NaN.
// NaN encodes as null, as JSON.stringify does.
type Points float64

func NaN() Points { return Points(math.NaN()) }

// Valid reports whether p is a finite number.
func (p Points) Valid() bool {
	f := float64(p)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// OrZero returns p, or 0 when p is not a finite number.
func (p Points) OrZero() Points {
	if !p.Valid() {
		return 0
	}
	return p
}

func (p *Points) UnmarshalJSON(data []byte) error {
	*p = Points(core.ParseNumber(data))
	return nil
}

func (p Points) MarshalJSON() ([]byte, error) {
	if !p.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(p))
}
