// Package notify fans auction results and confirmation prompts out to
// announcement channels. Publishing is fire-and-forget: callers log failures
// and never roll back ledger work because of them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"auctionhouse/internal/ledger"
)

type Kind string

const (
	AuctionSettled        Kind = "auction.settled"
	AuctionUnsold         Kind = "auction.unsold"
	BidAccepted           Kind = "auction.bid_accepted"
	ConfirmationRequested Kind = "confirmation.requested"
)

type Event struct {
	Kind         Kind            `json:"kind"`
	Item         ledger.ItemKey  `json:"item"`
	Winner       ledger.Identity `json:"winner,omitempty"`
	Amount       int64           `json:"amount,omitempty"`
	Confirmation string          `json:"confirmation_id,omitempty"`
	Counterparty ledger.Identity `json:"counterparty,omitempty"`
	Summary      string          `json:"summary,omitempty"`
	At           time.Time       `json:"at"`
}

//go:generate mockgen -destination=mocks/mock_sink.go -package=mocks auctionhouse/internal/notify Sink

type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// Text renders the event as a single human readable line.
func (e Event) Text() string {
	switch e.Kind {
	case AuctionSettled:
		return fmt.Sprintf("%s sold to %s for %d", e.Item, e.Winner, e.Amount)
	case AuctionUnsold:
		return fmt.Sprintf("%s closed with no bids", e.Item)
	case BidAccepted:
		return fmt.Sprintf("%s: %s bid %d", e.Item, e.Winner, e.Amount)
	case ConfirmationRequested:
		return fmt.Sprintf("%s, confirm %s (id %s)", e.Counterparty, e.Summary, e.Confirmation)
	default:
		return string(e.Kind)
	}
}

type LogSink struct {
	log *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{log: logger}
}

func (s *LogSink) Publish(ctx context.Context, ev Event) error {
	s.log.InfoContext(ctx, "event", "kind", string(ev.Kind), "item", ev.Item.String(), "text", ev.Text())
	return nil
}

// Multi publishes to every sink and joins their errors.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
