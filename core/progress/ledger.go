package progress

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ilmlab/core"
	"github.com/trezcool/ilmlab/core/identity"
)

var ErrNoRecord = errors.New("no progress record")

type (
	LedgerDeps struct {
		Store    core.DocumentStore
		Catalog  *Catalog
		Logger   core.Logger
		Metrics  Metrics  // optional
		Notifier Notifier // optional
		Clock    func() time.Time
	}

	// Ledger loads, reconciles and persists user records.
	Ledger struct {
		store       core.DocumentStore
		catalog     *Catalog
		logger      core.Logger
		metrics     Metrics
		notifier    Notifier
		now         func() time.Time
		loc         *time.Location
		collection  string
		repairScore Points
		limit       int
	}
)

func NewLedger(conf *core.Config, deps LedgerDeps) *Ledger {
	l := &Ledger{
		store:       deps.Store,
		catalog:     deps.Catalog,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		notifier:    deps.Notifier,
		now:         deps.Clock,
		loc:         conf.Location(),
		collection:  conf.Progress.UsersCollection,
		repairScore: Points(conf.Progress.RepairScore),
		limit:       conf.Progress.LeaderboardLimit,
	}
	if l.catalog == nil {
		l.catalog = DefaultCatalog()
	}
	if l.metrics == nil {
		l.metrics = nopMetrics{}
	}
	if l.notifier == nil {
		l.notifier = nopNotifier{}
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.collection == "" {
		l.collection = "users"
	}
	if !l.repairScore.Valid() {
		l.repairScore = 100
	}
	if l.limit <= 0 {
		l.limit = 20
	}
	return l
}

func (l *Ledger) Catalog() *Catalog { return l.catalog }

// Load fetches and decodes a record without reconciling it.
func (l *Ledger) Load(ctx context.Context, userID string) (UserRecord, error) {
	doc, err := l.store.Get(ctx, l.collection, userID)
	if err != nil {
		if errors.Is(err, core.ErrDocumentNotFound) {
			return UserRecord{}, ErrNoRecord
		}
		return UserRecord{}, errors.Wrap(err, "getting user document")
	}
	rec, err := DecodeRecord(doc)
	if err != nil {
		return UserRecord{}, errors.Wrap(err, "decoding user document")
	}
	return rec, nil
}

// Open loads and reconciles a record, writing back what reconciliation corrected.
// Write failures are logged only. It returns ErrNoRecord when the user has no record.
func (l *Ledger) Open(ctx context.Context, userID string) (*Session, error) {
	rec, err := l.Load(ctx, userID)
	if err != nil {
		l.metrics.Reconciled(OutcomeFailed)
		return nil, err
	}

	res := Reconcile(rec, l.now(), l.loc, l.catalog, l.repairScore)
	if res.XPDirty() {
		l.logRepair(userID, res)
		l.update(ctx, OpReconcileXP, userID, repairedFields(res))
	}
	if res.StreakChanged {
		l.update(ctx, OpReconcileStreak, userID, core.Fields{
			FieldStreak:        res.Record.Streak,
			FieldLastLoginDate: res.Record.LastLoginDate,
		})
	}

	if res.Dirty() {
		l.metrics.Reconciled(OutcomeRepaired)
	} else {
		l.metrics.Reconciled(OutcomeClean)
	}
	return &Session{ledger: l, rec: res.Record, recon: res}, nil
}

// Repair fixes the lesson scores and xp of a record without counting a login:
// streak and lastLoginDate are left as stored. With dryRun nothing is written.
// Unlike Open, a write failure is returned.
func (l *Ledger) Repair(ctx context.Context, userID string, dryRun bool) (Reconciliation, error) {
	rec, err := l.Load(ctx, userID)
	if err != nil {
		return Reconciliation{}, err
	}

	res := RepairXP(rec, l.catalog, l.repairScore)
	if dryRun || !res.XPDirty() {
		return res, nil
	}
	l.logRepair(userID, res)
	if err = l.store.Update(ctx, l.collection, userID, repairedFields(res)); err != nil {
		l.metrics.PersistFailed(OpReconcileXP)
		return res, errors.Wrap(err, "writing repaired record")
	}
	return res, nil
}

func (l *Ledger) logRepair(userID string, res Reconciliation) {
	if len(res.RepairedLessons) > 0 {
		l.logger.Warn("repaired corrupted lesson scores", map[string]interface{}{
			"user":    userID,
			"lessons": res.RepairedLessons,
			"score":   float64(l.repairScore),
		})
	}
	l.logger.Info("correcting xp", map[string]interface{}{
		"user":     userID,
		"stored":   res.PreviousXP,
		"computed": res.Record.XP,
	})
}

func repairedFields(res Reconciliation) core.Fields {
	return core.Fields{
		FieldXP:       res.Record.XP,
		FieldProgress: res.Record.Progress,
	}
}

// Enroll creates the record of a signed-in user unless one exists already.
func (l *Ledger) Enroll(ctx context.Context, idt identity.Identity) (rec UserRecord, created bool, err error) {
	rec, err = l.Load(ctx, idt.ID)
	switch {
	case err == nil:
		return rec, false, nil
	case !errors.Is(err, ErrNoRecord):
		return UserRecord{}, false, err
	}

	rec = NewUserRecord(idt.ID, l.now())
	rec.DisplayName = idt.DisplayName
	rec.Email = idt.Email
	rec.PhotoURL = idt.PhotoURL
	if err = l.store.Set(ctx, l.collection, idt.ID, rec.Fields(), core.SetOptions{}); err != nil {
		l.metrics.PersistFailed(OpEnroll)
		return UserRecord{}, false, errors.Wrap(err, "creating user document")
	}
	return rec, true, nil
}

func (l *Ledger) update(ctx context.Context, op, userID string, fields core.Fields) {
	if err := l.store.Update(ctx, l.collection, userID, fields); err != nil {
		l.persistFailed(op, userID, err)
	}
}

func (l *Ledger) merge(ctx context.Context, op, userID string, fields core.Fields) {
	if err := l.store.Set(ctx, l.collection, userID, fields, core.SetOptions{Merge: true}); err != nil {
		l.persistFailed(op, userID, err)
	}
}

func (l *Ledger) persistFailed(op, userID string, err error) {
	l.metrics.PersistFailed(op)
	l.logger.Error("persisting progress", errors.Wrap(err, op), map[string]interface{}{"user": userID})
}
