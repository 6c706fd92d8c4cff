package progress

import "context"

// Reconciliation outcomes reported to Metrics
const (
	OutcomeClean    = "clean"
	OutcomeRepaired = "repaired"
	OutcomeFailed   = "failed"
)

// Persistence operations reported to Metrics
const (
	OpReconcileXP     = "reconcile_xp"
	OpReconcileStreak = "reconcile_streak"
	OpVideo           = "video"
	OpTask            = "task"
	OpEnroll          = "enroll"
)

type (
	// Metrics counts ledger events.
	Metrics interface {
		Reconciled(outcome string)
		TaskCompleted(status TaskStatus)
		AchievementUnlocked(id string)
		PersistFailed(op string)
	}

	// Notifier is told about every achievement a user unlocks.
	Notifier interface {
		AchievementUnlocked(ctx context.Context, rec UserRecord, ach Achievement)
	}

	nopMetrics  struct{}
	nopNotifier struct{}
)

func (nopMetrics) Reconciled(string)          {}
func (nopMetrics) TaskCompleted(TaskStatus)   {}
func (nopMetrics) AchievementUnlocked(string) {}
func (nopMetrics) PersistFailed(string)       {}

func (nopNotifier) AchievementUnlocked(context.Context, UserRecord, Achievement) {}
