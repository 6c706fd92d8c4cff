package progress

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/ilmlab/core"
	inmemdb "github.com/trezcool/ilmlab/storage/database/inmem"
	testutil "github.com/trezcool/ilmlab/tests"
)

var fixedNow = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)

type ledgerFixture struct {
	ledger  *Ledger
	store   *testutil.FlakyStore
	logger  *testutil.Logger
	metrics *countingMetrics
	notes   *recordingNotifier
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	f := &ledgerFixture{
		store:   &testutil.FlakyStore{DocumentStore: inmemdb.NewDocumentStore()},
		logger:  new(testutil.Logger),
		metrics: newCountingMetrics(),
		notes:   new(recordingNotifier),
	}
	f.ledger = NewLedger(core.NewTestConfig(), LedgerDeps{
		Store:    f.store,
		Logger:   f.logger,
		Metrics:  f.metrics,
		Notifier: f.notes,
		Clock:    func() time.Time { return fixedNow },
	})
	return f
}

func (f *ledgerFixture) seed(t *testing.T, rec UserRecord) {
	t.Helper()
	testutil.SeedDocument(t, f.store.DocumentStore, "users", rec.ID, rec.Fields())
}

func (f *ledgerFixture) stored(t *testing.T, id string) UserRecord {
	t.Helper()
	rec, err := DecodeRecord(testutil.GetDocument(t, f.store.DocumentStore, "users", id))
	if err != nil {
		t.Fatalf("DecodeRecord() failed: %v", err)
	}
	return rec
}

type countingMetrics struct {
	counts map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{counts: make(map[string]int)}
}

func (m *countingMetrics) Reconciled(outcome string)       { m.counts["reconciled:"+outcome]++ }
func (m *countingMetrics) TaskCompleted(status TaskStatus) { m.counts["task:"+string(status)]++ }
func (m *countingMetrics) AchievementUnlocked(id string)   { m.counts["achievement:"+id]++ }
func (m *countingMetrics) PersistFailed(op string)         { m.counts["persist_failed:"+op]++ }

type recordingNotifier struct {
	unlocked []string
}

func (n *recordingNotifier) AchievementUnlocked(_ context.Context, _ UserRecord, ach Achievement) {
	n.unlocked = append(n.unlocked, ach.ID)
}
