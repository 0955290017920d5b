package auction

import (
	"context"
	"errors"
	"fmt"

	"auctionhouse/internal/ledger"
)

// MinimumNext is the lowest acceptable bid over current:
// current + max(1, round(current*pct/100)).
func MinimumNext(current, pct int64) int64 {
	step := ledger.PercentOf(current, pct)
	if step < 1 {
		step = 1
	}
	return current + step
}

type BidRequest struct {
	Item   ledger.ItemKey
	Bidder ledger.Identity
	// Actor is the user placing a group bid. Ignored for personal bids.
	Actor  string
	Amount int64
	// ClubID binds a duelist purchase to a club the bidder owns.
	ClubID *int64
}

// Validator applies the bid acceptance rules against a ledger transaction.
type Validator struct {
	IncrementPercent int64
}

// CurrentPrice is the highest bid for key, or the item base price when no
// bid has been placed yet.
func CurrentPrice(ctx context.Context, tx ledger.Tx, item ledger.Item) (int64, *ledger.Bid, error) {
	top, err := tx.HighestBid(ctx, item.Key)
	if errors.Is(err, ledger.ErrNoBids) {
		return item.BasePrice, nil, nil
	}
	if err != nil {
		return 0, nil, err
	}
	return top.Amount, &top, nil
}

func loadItem(ctx context.Context, tx ledger.Tx, key ledger.ItemKey) (ledger.Item, error) {
	switch key.Type {
	case ledger.ItemClub:
		c, err := tx.Club(ctx, key.ID)
		if err != nil {
			return ledger.Item{}, err
		}
		return c.Item(), nil
	case ledger.ItemDuelist:
		d, err := tx.Duelist(ctx, key.ID)
		if err != nil {
			return ledger.Item{}, err
		}
		return d.Item(), nil
	default:
		return ledger.Item{}, fmt.Errorf("%w: %s", ledger.ErrUnknownItem, key)
	}
}

// Check validates req and returns the item and the minimum that applied.
// It reads balances but reserves nothing.
func (v Validator) Check(ctx context.Context, tx ledger.Tx, req BidRequest) (ledger.Item, int64, error) {
	if err := req.Bidder.Validate(); err != nil {
		return ledger.Item{}, 0, err
	}
	if err := ledger.ValidateAmount(req.Amount); err != nil {
		return ledger.Item{}, 0, err
	}
	item, err := loadItem(ctx, tx, req.Item)
	if err != nil {
		return ledger.Item{}, 0, err
	}
	current, _, err := CurrentPrice(ctx, tx, item)
	if err != nil {
		return item, 0, err
	}
	minimum := MinimumNext(current, v.IncrementPercent)
	if req.Amount < minimum {
		return item, minimum, fmt.Errorf("%w: minimum is %d", ledger.ErrBidTooLow, minimum)
	}

	if err := checkFunds(ctx, tx, req); err != nil {
		return item, minimum, err
	}

	if req.Item.Type == ledger.ItemDuelist {
		if req.ClubID == nil {
			return item, minimum, fmt.Errorf("%w: duelist bids must name a club", ledger.ErrNotClubOwner)
		}
		club, err := tx.Club(ctx, *req.ClubID)
		if err != nil {
			return item, minimum, err
		}
		if !club.Owner.Equal(req.Bidder) {
			return item, minimum, fmt.Errorf("%w: club %d", ledger.ErrNotClubOwner, club.ID)
		}
	}
	return item, minimum, nil
}

func checkFunds(ctx context.Context, tx ledger.Tx, req BidRequest) error {
	if req.Bidder.IsGroup() {
		if _, err := tx.Member(ctx, req.Bidder.ID, req.Actor); err != nil {
			return err
		}
		g, err := tx.Group(ctx, req.Bidder.ID)
		if err != nil {
			return err
		}
		if g.Funds < req.Amount {
			return fmt.Errorf("%w: group %s has %d", ledger.ErrInsufficientFunds, g.Name, g.Funds)
		}
		return nil
	}
	w, err := tx.Wallet(ctx, req.Bidder.ID)
	if err != nil {
		return err
	}
	if w.Balance < req.Amount {
		return fmt.Errorf("%w: wallet has %d", ledger.ErrInsufficientFunds, w.Balance)
	}
	return nil
}
