package ownership

import (
	"fmt"
	"sync"
	"time"

	"auctionhouse/internal/ledger"

	"github.com/google/uuid"
)

type ProposalKind string

const (
	ClubSale  ProposalKind = "club_sale"
	ShareSale ProposalKind = "share_sale"
)

type ProposalState string

const (
	Proposed  ProposalState = "proposed"
	Confirmed ProposalState = "confirmed"
	Rejected  ProposalState = "rejected"
	Expired   ProposalState = "expired"
)

// Proposal is a trade waiting on the counterparty. Only Proposed can change;
// the other states are final.
type Proposal struct {
	ID           string        `json:"id"`
	Kind         ProposalKind  `json:"kind"`
	Proposer     string        `json:"proposer"`
	Counterparty string        `json:"counterparty"`
	ClubID       int64         `json:"club_id"`
	Group        string        `json:"group,omitempty"`
	Pct          int64         `json:"pct,omitempty"`
	Price        int64         `json:"price"`
	State        ProposalState `json:"state"`
	CreatedAt    time.Time     `json:"created_at"`
	ExpiresAt    time.Time     `json:"expires_at"`
	ResolvedAt   *time.Time    `json:"resolved_at,omitempty"`

	accepting bool
	timer     Timer
}

type Timer interface {
	Stop() bool
}

type AfterFunc func(d time.Duration, f func()) Timer

// Handshakes holds proposals in memory for the life of the process. Each
// proposal expires on its own timer; nothing is locked while waiting.
type Handshakes struct {
	mu        sync.Mutex
	timeout   time.Duration
	retention time.Duration
	now       func() time.Time
	after     AfterFunc
	items     map[string]*Proposal
}

func NewHandshakes(timeout time.Duration, now func() time.Time, after AfterFunc) *Handshakes {
	if now == nil {
		now = time.Now
	}
	if after == nil {
		after = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	return &Handshakes{
		timeout:   timeout,
		retention: time.Hour,
		now:       now,
		after:     after,
		items:     make(map[string]*Proposal),
	}
}

func (h *Handshakes) Propose(p Proposal) Proposal {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sweepLocked()

	p.ID = uuid.NewString()
	p.State = Proposed
	p.CreatedAt = h.now()
	p.ExpiresAt = p.CreatedAt.Add(h.timeout)
	stored := &p
	h.items[p.ID] = stored
	id := p.ID
	stored.timer = h.after(h.timeout, func() { h.expire(id) })
	return *stored
}

func (h *Handshakes) Get(id string) (Proposal, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.items[id]
	if !ok {
		return Proposal{}, fmt.Errorf("%w: %s", ledger.ErrConfirmationNotFound, id)
	}
	return *p, nil
}

// claim reserves a Proposed proposal for the counterparty's accept so a
// second accept cannot run the trade twice.
func (h *Handshakes) claim(id, actor string) (Proposal, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, err := h.openLocked(id)
	if err != nil {
		return Proposal{}, err
	}
	if p.Counterparty != actor {
		return Proposal{}, fmt.Errorf("%w: only %s can accept", ledger.ErrUnauthorized, p.Counterparty)
	}
	if p.accepting {
		return Proposal{}, fmt.Errorf("%w: accept already in progress", ledger.ErrConfirmationClosed)
	}
	p.accepting = true
	return *p, nil
}

// release ends a claim. A committed trade becomes Confirmed; a failed one
// goes back to Proposed unless its deadline passed meanwhile.
func (h *Handshakes) release(id string, committed bool) Proposal {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := h.items[id]
	p.accepting = false
	switch {
	case committed:
		h.resolveLocked(p, Confirmed)
	case !h.now().Before(p.ExpiresAt):
		h.resolveLocked(p, Expired)
	}
	return *p
}

// Reject closes the proposal. Either side may reject.
func (h *Handshakes) Reject(id, actor string) (Proposal, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, err := h.openLocked(id)
	if err != nil {
		return Proposal{}, err
	}
	if actor != p.Counterparty && actor != p.Proposer {
		return Proposal{}, fmt.Errorf("%w: not a party to %s", ledger.ErrUnauthorized, id)
	}
	if p.accepting {
		return Proposal{}, fmt.Errorf("%w: accept already in progress", ledger.ErrConfirmationClosed)
	}
	h.resolveLocked(p, Rejected)
	return *p, nil
}

func (h *Handshakes) openLocked(id string) (*Proposal, error) {
	p, ok := h.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrConfirmationNotFound, id)
	}
	if p.State == Expired {
		return nil, fmt.Errorf("%w: %s", ledger.ErrConfirmationExpired, id)
	}
	if p.State != Proposed {
		return nil, fmt.Errorf("%w: %s is %s", ledger.ErrConfirmationClosed, id, p.State)
	}
	if !h.now().Before(p.ExpiresAt) && !p.accepting {
		h.resolveLocked(p, Expired)
		return nil, fmt.Errorf("%w: %s", ledger.ErrConfirmationExpired, id)
	}
	return p, nil
}

func (h *Handshakes) expire(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.items[id]
	if !ok || p.State != Proposed || p.accepting {
		return
	}
	h.resolveLocked(p, Expired)
}

func (h *Handshakes) resolveLocked(p *Proposal, state ProposalState) {
	now := h.now()
	p.State = state
	p.ResolvedAt = &now
	if p.timer != nil {
		p.timer.Stop()
	}
}

func (h *Handshakes) sweepLocked() {
	cutoff := h.now().Add(-h.retention)
	for id, p := range h.items {
		if p.ResolvedAt != nil && p.ResolvedAt.Before(cutoff) {
			delete(h.items, id)
		}
	}
}

// Stop disarms every pending expiry timer.
func (h *Handshakes) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range h.items {
		if p.timer != nil {
			p.timer.Stop()
		}
	}
}
