package progress

import (
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

// layouts lastLoginDate may have been written with
var legacyDateLayouts = []string{
	dateLayout,
	"Mon Jan 02 2006",
	"Mon Jan 2 2006",
	time.RFC3339,
}

// Reconciliation is the outcome of checking a loaded record against its invariants.
type Reconciliation struct {
	Record          UserRecord
	RepairedLessons []string
	PreviousXP      Points
	XPCorrected     bool
	PreviousStreak  int
	StreakChanged   bool
}

// XPDirty reports whether xp and progress must be written back.
func (r Reconciliation) XPDirty() bool {
	return r.XPCorrected || len(r.RepairedLessons) > 0
}

// Dirty reports whether anything must be written back.
func (r Reconciliation) Dirty() bool {
	return r.XPDirty() || r.StreakChanged
}

// Date formats t as a calendar date in loc.
func Date(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateLayout)
}

// CalculateXP sums lesson scores and the bonus of every unlocked achievement.
// Invalid scores count as 0.
func CalculateXP(rec UserRecord, cat *Catalog) Points {
	var xp Points
	for _, id := range rec.LessonIDs() {
		xp += rec.Progress[id].Score.OrZero()
	}
	ids := make([]string, 0, len(rec.Achievements))
	for id, unlocked := range rec.Achievements {
		if unlocked {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		xp += cat.Bonus(id)
	}
	return xp
}

// Reconcile repairs non-numeric lesson scores with repairScore, recomputes xp
// and advances the login streak for the calendar day of now (in loc).
// rec is left untouched.
func Reconcile(rec UserRecord, now time.Time, loc *time.Location, cat *Catalog, repairScore Points) Reconciliation {
	res := RepairXP(rec, cat, repairScore)

	out := res.Record
	out.Streak, res.StreakChanged = nextStreak(out.LastLoginDate, out.Streak, now.In(loc))
	if res.StreakChanged {
		out.LastLoginDate = Date(now, loc)
	}
	res.Record = out
	return res
}

// RepairXP is Reconcile without the login streak step.
func RepairXP(rec UserRecord, cat *Catalog, repairScore Points) Reconciliation {
	out := rec.Clone()
	res := Reconciliation{
		PreviousXP:     rec.XP,
		PreviousStreak: rec.Streak,
	}

	for _, id := range out.LessonIDs() {
		lp := out.Progress[id]
		if !lp.Score.Valid() {
			lp.Score = repairScore
			out.Progress[id] = lp
			res.RepairedLessons = append(res.RepairedLessons, id)
		}
	}

	calculated := CalculateXP(out, cat)
	if !out.XP.Valid() || out.XP != calculated {
		res.XPCorrected = true
	}
	if res.XPDirty() {
		out.XP = calculated
	}

	res.Record = out
	return res
}

// nextStreak returns the streak for a session on day today, given the last login date.
// changed is false only when the last login already happened today.
func nextStreak(lastLogin string, streak int, today time.Time) (int, bool) {
	last, ok := parseDate(lastLogin, today.Location())
	if !ok {
		return 1, true
	}
	y, m, d := today.Date()
	switch last.Format(dateLayout) {
	case today.Format(dateLayout):
		return streak, false
	case time.Date(y, m, d-1, 0, 0, 0, 0, today.Location()).Format(dateLayout):
		return streak + 1, true
	default:
		return 1, true
	}
}

func parseDate(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range legacyDateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}
