package sale

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"utilisoft/backend/internal/cart"
	"utilisoft/backend/internal/domain"
)

// Guard claims idempotency tokens so a retried submission is not recorded
// twice. Claim reports false when the key is already held.
type Guard interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// MemoryGuard is a process-local Guard.
type MemoryGuard struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{keys: map[string]time.Time{}, now: time.Now}
}

func (g *MemoryGuard) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if expires, ok := g.keys[key]; ok && now.Before(expires) {
		return false, nil
	}
	g.keys[key] = now.Add(ttl)
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, key)
	return nil
}

// Session is one operator's working state: a cart plus the checkout in
// flight for it. Cart access is serialized; a second checkout while one is
// running fails fast instead of queueing.
type Session struct {
	committer *Committer
	guard     Guard
	guardTTL  time.Duration

	inFlight atomic.Bool
	mu       sync.Mutex
	cart     *cart.Cart
}

func (s *Session) Mutate(fn func(c *cart.Cart) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.cart)
}

func (s *Session) View() domain.CartView {
	s.mu.Lock()
	defer s.mu.Unlock()

	selected, ok := s.cart.Selected()
	if !ok {
		selected = -1
	}
	lines := s.cart.Items()
	if lines == nil {
		lines = []domain.SaleItem{}
	}
	return domain.CartView{
		Lines:    lines,
		Total:    s.cart.Total(),
		Selected: selected,
	}
}

// Checkout commits the cart for operatorID. The cart is cleared only when
// the sale is recorded. A non-empty key is claimed first and released again
// if the sale fails, so the operator can resubmit the same cart.
func (s *Session) Checkout(ctx context.Context, operatorID int64, key string) (domain.SaleReceipt, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return domain.SaleReceipt{}, ErrCheckoutInProgress
	}
	defer s.inFlight.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()

	claimKey := ""
	if key != "" && s.guard != nil {
		claimKey = fmt.Sprintf("checkout:%d:%s", operatorID, key)
		claimed, err := s.guard.Claim(ctx, claimKey, s.guardTTL)
		if err != nil {
			return domain.SaleReceipt{}, fmt.Errorf("claim idempotency key: %w", err)
		}
		if !claimed {
			return domain.SaleReceipt{}, ErrDuplicateSubmission
		}
	}

	receipt, err := s.committer.Commit(ctx, s.cart.Items(), operatorID)
	if err != nil {
		if claimKey != "" {
			_ = s.guard.Release(context.WithoutCancel(ctx), claimKey)
		}
		return domain.SaleReceipt{}, err
	}
	s.cart.Clear()
	return receipt, nil
}

// Sessions hands out one Session per session id.
type Sessions struct {
	committer *Committer
	guard     Guard
	guardTTL  time.Duration

	mu   sync.Mutex
	byID map[string]*Session
}

func NewSessions(committer *Committer, guard Guard, guardTTL time.Duration) *Sessions {
	if guardTTL <= 0 {
		guardTTL = 30 * time.Minute
	}
	return &Sessions{
		committer: committer,
		guard:     guard,
		guardTTL:  guardTTL,
		byID:      map[string]*Session{},
	}
}

func (s *Sessions) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.byID[id]; ok {
		return sess
	}
	sess := &Session{
		committer: s.committer,
		guard:     s.guard,
		guardTTL:  s.guardTTL,
		cart:      cart.New(),
	}
	s.byID[id] = sess
	return sess
}

// Drop discards the session and its cart.
func (s *Sessions) Drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}
