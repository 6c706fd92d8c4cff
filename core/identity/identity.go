package identity

import (
	"sync"
)

type (
	// Identity is a signed-in user as reported by the identity provider.
	Identity struct {
		ID          string `json:"id"`
		Email       string `json:"email,omitempty"`
		DisplayName string `json:"displayName,omitempty"`
		PhotoURL    string `json:"photoURL,omitempty"`
	}

	// Change is a sign-in state transition. A nil Identity means the user signed out.
	Change struct {
		UserID   string
		Identity *Identity
	}

	// Provider notifies subscribers whenever sign-in state changes.
	Provider interface {
		OnAuthChange(fn func(Change)) (unsubscribe func())
	}

	// Hub is an in-process Provider. Changes are delivered synchronously, in subscription order.
	Hub struct {
		mu     sync.RWMutex
		nextID int
		subs   map[int]func(Change)
		order  []int
	}
)

var _ Provider = (*Hub)(nil)

func (i Identity) SignedIn() Change {
	idt := i
	return Change{UserID: i.ID, Identity: &idt}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]func(Change))}
}

func (h *Hub) OnAuthChange(fn func(Change)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	h.order = append(h.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			for i, sid := range h.order {
				if sid == id {
					h.order = append(h.order[:i], h.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (h *Hub) SignIn(idt Identity) {
	h.publish(idt.SignedIn())
}

func (h *Hub) SignOut(userID string) {
	h.publish(Change{UserID: userID})
}

func (h *Hub) publish(chg Change) {
	h.mu.RLock()
	fns := make([]func(Change), 0, len(h.order))
	for _, id := range h.order {
		fns = append(fns, h.subs[id])
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(chg)
	}
}
