package progress

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Task completion statuses
const (
	TaskRecorded         TaskStatus = "recorded"
	TaskAlreadyCompleted TaskStatus = "already_completed"
	TaskRejected         TaskStatus = "rejected"
)

type (
	TaskStatus string

	TaskOutcome struct {
		Status    TaskStatus   `json:"status"`
		Unlocked  *Achievement `json:"unlocked,omitempty"` // first achievement unlocked, if any
		XPAwarded Points       `json:"xpAwarded"`
		Record    UserRecord   `json:"record"`
	}

	// Session holds the reconciled record of a signed-in user.
	// Mutations are serialized; each one persists its own fields.
	Session struct {
		mu     sync.Mutex
		ledger *Ledger
		rec    UserRecord
		recon  Reconciliation
	}
)

func (o TaskOutcome) Applied() bool { return o.Status == TaskRecorded }

func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.ID
}

// Record returns a copy of the in-memory record.
func (s *Session) Record() UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Clone()
}

// Reconciliation returns what was corrected when the session was opened.
func (s *Session) Reconciliation() Reconciliation {
	return s.recon
}

// RecordVideoWatched marks the lesson video as watched and persists progress.
func (s *Session) RecordVideoWatched(ctx context.Context, lessonID string) UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rec, _ = WatchVideo(s.rec, lessonID)
	s.ledger.merge(ctx, OpVideo, s.rec.ID, map[string]interface{}{
		FieldProgress: s.rec.Progress,
	})
	return s.rec.Clone()
}

// RecordTaskCompleted scores a lesson task at most once. The in-memory record is
// updated before progress, xp, achievements and badges are persisted in a single merge.
func (s *Session) RecordTaskCompleted(ctx context.Context, lessonID string, result AssessmentResult) TaskOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.ledger
	next, err := CompleteTask(s.rec, lessonID, result, l.catalog, l.now())
	if err != nil {
		status := TaskRejected
		if errors.Is(err, ErrTaskAlreadyCompleted) {
			status = TaskAlreadyCompleted
		} else {
			l.logger.Error("completing task", errors.Wrap(err, lessonID), map[string]interface{}{
				"user":  s.rec.ID,
				"score": result.Score,
			})
		}
		l.metrics.TaskCompleted(status)
		return TaskOutcome{Status: status, Record: s.rec.Clone()}
	}

	s.rec = next.Record
	l.merge(ctx, OpTask, s.rec.ID, map[string]interface{}{
		FieldProgress:     s.rec.Progress,
		FieldXP:           s.rec.XP,
		FieldAchievements: s.rec.Achievements,
		FieldBadges:       s.rec.Badges,
	})
	l.metrics.TaskCompleted(TaskRecorded)

	out := TaskOutcome{Status: TaskRecorded, XPAwarded: next.XPAwarded, Record: s.rec.Clone()}
	for i, ach := range next.Unlocked {
		l.metrics.AchievementUnlocked(ach.ID)
		l.notifier.AchievementUnlocked(ctx, out.Record, ach)
		if i == 0 {
			first := ach
			out.Unlocked = &first
		}
	}
	return out
}
