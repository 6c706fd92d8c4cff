package progress

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ilmlab/core"
	"github.com/trezcool/ilmlab/core/identity"
)

const signInTimeout = 10 * time.Second

var ErrNoSession = errors.New("no active session")

// Sessions keeps one Session per signed-in user, following an identity Provider.
type Sessions struct {
	ledger *Ledger
	logger core.Logger

	mu     sync.RWMutex
	active map[string]*Session
	failed map[string]error // why the last sign-in did not open a session
}

func NewSessions(ledger *Ledger, logger core.Logger) *Sessions {
	return &Sessions{
		ledger: ledger,
		logger: logger,
		active: make(map[string]*Session),
		failed: make(map[string]error),
	}
}

// Subscribe opens a session on every sign-in and drops it on sign-out.
func (s *Sessions) Subscribe(p identity.Provider) (unsubscribe func()) {
	return p.OnAuthChange(s.handle)
}

func (s *Sessions) handle(chg identity.Change) {
	if chg.Identity == nil {
		s.end(chg.UserID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), signInTimeout)
	defer cancel()

	sess, err := s.ledger.Open(ctx, chg.Identity.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		delete(s.active, chg.UserID)
		s.failed[chg.UserID] = err
		if errors.Is(err, ErrNoRecord) {
			s.logger.Info("sign-in without progress record", map[string]interface{}{"user": chg.UserID})
		} else {
			s.logger.Error("opening session", err, map[string]interface{}{"user": chg.UserID})
		}
		return
	}
	delete(s.failed, chg.UserID)
	s.active[chg.UserID] = sess
}

func (s *Sessions) end(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, userID)
	delete(s.failed, userID)
}

// Get returns the session of a user. Without one, the error tells why the last
// sign-in failed (ErrNoRecord or a read error), or is ErrNoSession.
func (s *Sessions) Get(userID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.active[userID]; ok {
		return sess, nil
	}
	if err, ok := s.failed[userID]; ok {
		return nil, err
	}
	return nil, ErrNoSession
}

func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}
