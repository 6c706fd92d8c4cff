package progress

import (
	_ "embed"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Achievement identifiers the reward rules know about
const (
	AchievementFirstDiscovery = "first_discovery"
	AchievementQuizMaster     = "quiz_master"
	AchievementStreak3        = "streak_3"
)

//go:embed achievements.toml
var defaultCatalogTOML []byte

type (
	Achievement struct {
		ID          string  `toml:"id" json:"id"`
		Title       string  `toml:"title" json:"title"`
		Description string  `toml:"description" json:"description"`
		Icon        string  `toml:"icon" json:"icon"`
		XPBonus     float64 `toml:"xp_bonus" json:"xpBonus"`
	}

	// Catalog is the ordered, read-only list of achievements.
	Catalog struct {
		list []Achievement
		byID map[string]int
	}

	AchievementStatus struct {
		Achievement
		Unlocked bool `json:"unlocked"`
	}

	CatalogStatus struct {
		Achievements []AchievementStatus `json:"achievements"`
		Unlocked     int                 `json:"unlocked"`
		Total        int                 `json:"total"`
	}

	catalogFile struct {
		Achievement []Achievement `toml:"achievement"`
	}
)

func NewCatalog(achievements ...Achievement) (*Catalog, error) {
	cat := &Catalog{
		list: make([]Achievement, 0, len(achievements)),
		byID: make(map[string]int, len(achievements)),
	}
	for _, a := range achievements {
		switch {
		case a.ID == "":
			return nil, errors.New("achievement without id")
		case a.XPBonus < 0 || !Points(a.XPBonus).Valid():
			return nil, errors.Errorf("achievement %q: invalid xp bonus %v", a.ID, a.XPBonus)
		}
		if _, dup := cat.byID[a.ID]; dup {
			return nil, errors.Errorf("duplicate achievement %q", a.ID)
		}
		cat.byID[a.ID] = len(cat.list)
		cat.list = append(cat.list, a)
	}
	return cat, nil
}

// ParseCatalog decodes a TOML catalog made of [[achievement]] tables.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, errors.Wrap(err, "decoding achievement catalog")
	}
	return NewCatalog(f.Achievement...)
}

// LoadCatalog reads the catalog at path, or the built-in one when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return ParseCatalog(defaultCatalogTOML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading achievement catalog")
	}
	return ParseCatalog(data)
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	cat, err := ParseCatalog(defaultCatalogTOML)
	if err != nil {
		panic(err)
	}
	return cat
}

func (c *Catalog) Get(id string) (Achievement, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Achievement{}, false
	}
	return c.list[i], true
}

// Bonus returns the XP bonus of an achievement, 0 for unknown ones.
func (c *Catalog) Bonus(id string) Points {
	a, _ := c.Get(id)
	return Points(a.XPBonus)
}

func (c *Catalog) All() []Achievement {
	return append([]Achievement(nil), c.list...)
}

func (c *Catalog) Len() int { return len(c.list) }

// Status lists every achievement with whether the given record unlocked it.
func (c *Catalog) Status(rec UserRecord) CatalogStatus {
	st := CatalogStatus{
		Achievements: make([]AchievementStatus, 0, len(c.list)),
		Total:        len(c.list),
	}
	for _, a := range c.list {
		unlocked := rec.HasAchievement(a.ID)
		if unlocked {
			st.Unlocked++
		}
		st.Achievements = append(st.Achievements, AchievementStatus{Achievement: a, Unlocked: unlocked})
	}
	return st
}
