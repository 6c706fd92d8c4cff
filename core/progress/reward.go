package progress

import (
	"time"

	"github.com/pkg/errors"
)

var (
	ErrTaskAlreadyCompleted = errors.New("task already completed")
	ErrInvalidXP            = errors.New("computed xp is not a number")
)

// TaskCompletion is the next state of a record after a task was graded.
type TaskCompletion struct {
	Record    UserRecord
	Unlocked  []Achievement // in evaluation order
	XPAwarded Points
}

type rewardRule struct {
	achievement string
	applies     func(score Points) bool
}

// rewardRules are checked in order on every first completion of a task.
var rewardRules = []rewardRule{
	{achievement: AchievementFirstDiscovery, applies: func(Points) bool { return true }},
	{achievement: AchievementQuizMaster, applies: func(score Points) bool { return score == 100 }},
}

// TaskScore coerces an untrusted grade: non-numeric scores are 0, negative ones are clamped to 0.
func TaskScore(result AssessmentResult) Points {
	score := result.Score.OrZero()
	if score < 0 {
		return 0
	}
	return score
}

// CompleteTask scores lessonID once and unlocks the achievements the score earns.
// rec is left untouched. It returns ErrTaskAlreadyCompleted when the task was already scored,
// and ErrInvalidXP when the resulting xp is not a number.
func CompleteTask(rec UserRecord, lessonID string, result AssessmentResult, cat *Catalog, now time.Time) (TaskCompletion, error) {
	if rec.Progress[lessonID].TaskCompleted {
		return TaskCompletion{}, ErrTaskAlreadyCompleted
	}

	score := TaskScore(result)
	awarded := score
	var unlocked []Achievement
	for _, rule := range rewardRules {
		if rec.HasAchievement(rule.achievement) || !rule.applies(score) {
			continue
		}
		ach, ok := cat.Get(rule.achievement)
		if !ok {
			continue
		}
		unlocked = append(unlocked, ach)
		awarded += Points(ach.XPBonus)
	}

	newXP := rec.XP.OrZero() + awarded
	if !newXP.Valid() {
		return TaskCompletion{}, ErrInvalidXP
	}

	out := rec.Clone()
	completedAt := now.UTC()
	lp := out.Progress[lessonID]
	lp.TaskCompleted = true
	lp.Score = score
	lp.CompletedAt = &completedAt
	out.Progress[lessonID] = lp
	for _, ach := range unlocked {
		out.Achievements[ach.ID] = true
		out.Badges = append(out.Badges, ach.ID)
	}
	out.XP = newXP

	return TaskCompletion{Record: out, Unlocked: unlocked, XPAwarded: awarded}, nil
}

// WatchVideo marks the lesson video as watched, creating the lesson entry when needed.
// changed is false when it was already watched.
func WatchVideo(rec UserRecord, lessonID string) (UserRecord, bool) {
	lp, ok := rec.Progress[lessonID]
	if ok && lp.VideoWatched {
		return rec.Clone(), false
	}
	out := rec.Clone()
	lp.VideoWatched = true
	out.Progress[lessonID] = lp
	return out, true
}
