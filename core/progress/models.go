package progress

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ilmlab/core"
)

// Record fields, as stored in the users collection
const (
	FieldDisplayName   = "displayName"
	FieldEmail         = "email"
	FieldPhotoURL      = "photoURL"
	FieldXP            = "xp"
	FieldStreak        = "streak"
	FieldLastLoginDate = "lastLoginDate"
	FieldAchievements  = "achievements"
	FieldBadges        = "badges"
	FieldProgress      = "progress"
	FieldCreatedAt     = "createdAt"
)

type (
	LessonProgress struct {
		VideoWatched  bool       `json:"videoWatched"`
		TaskCompleted bool       `json:"taskCompleted"`
		Score         Points     `json:"score"`
		CompletedAt   *time.Time `json:"completedAt,omitempty"`
	}

	// UserRecord is the per-user gamification document.
	// XP always equals the sum of lesson scores plus the bonus of every unlocked achievement.
	UserRecord struct {
		ID            string                    `json:"id"`
		DisplayName   string                    `json:"displayName,omitempty"`
		Email         string                    `json:"email,omitempty"`
		PhotoURL      string                    `json:"photoURL,omitempty"`
		XP            Points                    `json:"xp"`
		Streak        int                       `json:"streak"`
		LastLoginDate string                    `json:"lastLoginDate,omitempty"`
		Achievements  map[string]bool           `json:"achievements"`
		Badges        []string                  `json:"badges"`
		Progress      map[string]LessonProgress `json:"progress"`
		CreatedAt     time.Time                 `json:"createdAt"`
	}

	// AssessmentResult is the grade of a task. Only Score is consumed by the ledger.
	AssessmentResult struct {
		Score       Points  `json:"score"`
		Explanation string  `json:"explanation"`
		Confidence  float64 `json:"confidence"`
	}
)

// UnmarshalJSON never fails: flags are read as truthy values and a malformed
// entry decodes with a NaN score so that it gets repaired.
func (lp *LessonProgress) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	_ = json.Unmarshal(data, &raw)

	*lp = LessonProgress{
		VideoWatched:  core.Truthy(raw["videoWatched"]),
		TaskCompleted: core.Truthy(raw["taskCompleted"]),
		Score:         Points(core.ParseNumber(raw["score"])),
	}
	if ts, ok := raw["completedAt"]; ok {
		var t time.Time
		if err := json.Unmarshal(ts, &t); err == nil {
			lp.CompletedAt = &t
		}
	}
	return nil
}

// NewUserRecord returns a fresh record: no XP, no progress, no achievements.
func NewUserRecord(id string, now time.Time) UserRecord {
	return UserRecord{
		ID:           id,
		Achievements: make(map[string]bool),
		Badges:       make([]string, 0),
		Progress:     make(map[string]LessonProgress),
		CreatedAt:    now.UTC(),
	}
}

// DecodeRecord reads a UserRecord out of a stored document. It never fails on
// content: a missing or non-numeric xp decodes as NaN, a non-numeric streak as 0,
// and fields of the wrong shape decode as empty so that the record can still be reconciled.
func DecodeRecord(doc core.Document) (UserRecord, error) {
	rec := UserRecord{
		ID:            doc.ID,
		DisplayName:   decodeString(doc.Fields[FieldDisplayName]),
		Email:         decodeString(doc.Fields[FieldEmail]),
		PhotoURL:      decodeString(doc.Fields[FieldPhotoURL]),
		LastLoginDate: decodeString(doc.Fields[FieldLastLoginDate]),
		Achievements:  decodeFlags(doc.Fields[FieldAchievements]),
		Badges:        decodeBadges(doc.Fields[FieldBadges]),
		Progress:      decodeProgress(doc.Fields[FieldProgress]),
	}
	// a bad timestamp is not worth failing the session for
	_ = doc.Decode(FieldCreatedAt, &rec.CreatedAt)

	rec.XP = Points(doc.Number(FieldXP))
	if streak := doc.Number(FieldStreak); !math.IsNaN(streak) && streak > 0 {
		rec.Streak = int(streak)
	}
	return rec, nil
}

func decodeString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// decodeFlags keeps the truthy entries of an object. Anything but an object is empty.
func decodeFlags(raw json.RawMessage) map[string]bool {
	flags := make(map[string]bool)
	var entries map[string]json.RawMessage
	if json.Unmarshal(raw, &entries) != nil {
		return flags
	}
	for id, v := range entries {
		if core.Truthy(v) {
			flags[id] = true
		}
	}
	return flags
}

// decodeBadges keeps the string items of an array. Anything but an array is empty.
func decodeBadges(raw json.RawMessage) []string {
	badges := make([]string, 0)
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return badges
	}
	for _, item := range items {
		var id string
		if json.Unmarshal(item, &id) == nil && id != "" {
			badges = append(badges, id)
		}
	}
	return badges
}

func decodeProgress(raw json.RawMessage) map[string]LessonProgress {
	lessons := make(map[string]LessonProgress)
	var entries map[string]json.RawMessage
	if json.Unmarshal(raw, &entries) != nil {
		return lessons
	}
	for id, v := range entries {
		var lp LessonProgress
		_ = lp.UnmarshalJSON(v)
		lessons[id] = lp
	}
	return lessons
}

// Fields returns the whole record as document fields.
func (r UserRecord) Fields() core.Fields {
	return core.Fields{
		FieldDisplayName:   r.DisplayName,
		FieldEmail:         r.Email,
		FieldPhotoURL:      r.PhotoURL,
		FieldXP:            r.XP,
		FieldStreak:        r.Streak,
		FieldLastLoginDate: r.LastLoginDate,
		FieldAchievements:  r.Achievements,
		FieldBadges:        r.Badges,
		FieldProgress:      r.Progress,
		FieldCreatedAt:     r.CreatedAt,
	}
}

// Clone returns a deep copy of r.
func (r UserRecord) Clone() UserRecord {
	c := r
	c.Achievements = make(map[string]bool, len(r.Achievements))
	for k, v := range r.Achievements {
		c.Achievements[k] = v
	}
	c.Badges = append(make([]string, 0, len(r.Badges)), r.Badges...)
	c.Progress = make(map[string]LessonProgress, len(r.Progress))
	for k, v := range r.Progress {
		if v.CompletedAt != nil {
			t := *v.CompletedAt
			v.CompletedAt = &t
		}
		c.Progress[k] = v
	}
	return c
}

// HasAchievement reports whether the achievement is unlocked.
func (r UserRecord) HasAchievement(id string) bool {
	return r.Achievements[id]
}

// LessonIDs returns the lessons the user interacted with, sorted.
func (r UserRecord) LessonIDs() []string {
	ids := make([]string, 0, len(r.Progress))
	for id := range r.Progress {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func decodeRecords(docs []core.Document) ([]UserRecord, error) {
	recs := make([]UserRecord, 0, len(docs))
	for _, doc := range docs {
		rec, err := DecodeRecord(doc)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding record %q", doc.ID)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
