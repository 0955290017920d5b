package auction

import (
	"context"
	"errors"
	"fmt"

	"auctionhouse/internal/ledger"
	"auctionhouse/internal/notify"
)

// Outcome is the result of one settlement attempt.
type Outcome struct {
	Item   ledger.ItemKey  `json:"item"`
	Sold   bool            `json:"sold"`
	Winner ledger.Identity `json:"winner,omitempty"`
	Amount int64           `json:"amount,omitempty"`
	Debit  int64           `json:"debited,omitempty"`
	Club   *int64          `json:"club_id,omitempty"`
	Sale   *ledger.Sale    `json:"sale,omitempty"`
}

func (o Outcome) event() notify.Event {
	if !o.Sold {
		return notify.Event{Kind: notify.AuctionUnsold, Item: o.Item}
	}
	return notify.Event{Kind: notify.AuctionSettled, Item: o.Item, Winner: o.Winner, Amount: o.Amount}
}

// settle runs the whole settlement for key in one transaction. A failure
// leaves bids and balances untouched so the auction can be settled again.
func (e *Engine) settle(ctx context.Context, key ledger.ItemKey) (Outcome, error) {
	out := Outcome{Item: key}
	err := e.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		out = Outcome{Item: key}
		bid, err := tx.HighestBid(ctx, key)
		if errors.Is(err, ledger.ErrNoBids) {
			return nil
		}
		if err != nil {
			return err
		}
		out.Sold = true
		out.Winner = bid.Bidder
		out.Amount = bid.Amount

		if out.Debit, err = debitWinner(ctx, tx, bid); err != nil {
			return err
		}

		switch key.Type {
		case ledger.ItemClub:
			out.Sale, err = settleClub(ctx, tx, bid)
		case ledger.ItemDuelist:
			out.Sale, out.Club, err = settleDuelist(ctx, tx, bid)
		default:
			err = fmt.Errorf("%w: %s", ledger.ErrUnknownItem, key)
		}
		if err != nil {
			return err
		}
		return tx.DeleteBids(ctx, key)
	})
	return out, err
}

// debitWinner charges the winning amount. Group funds floor at zero, personal
// wallets do not floor and may go negative.
func debitWinner(ctx context.Context, tx ledger.Tx, bid ledger.Bid) (int64, error) {
	ref := bid.Item.String()
	var debit int64
	if bid.Bidder.IsGroup() {
		g, err := tx.Group(ctx, bid.Bidder.ID)
		if err != nil {
			return 0, err
		}
		after := g.Funds - bid.Amount
		if after < 0 {
			after = 0
		}
		debit = g.Funds - after
		if err := tx.SetGroupFunds(ctx, g.Name, after); err != nil {
			return 0, err
		}
	} else {
		w, err := tx.Wallet(ctx, bid.Bidder.ID)
		if err != nil {
			return 0, err
		}
		debit = bid.Amount
		if err := tx.SetWalletBalance(ctx, w.UserID, w.Balance-bid.Amount); err != nil {
			return 0, err
		}
	}
	if debit > 0 {
		if err := tx.AppendEntries(ctx, ledger.Transfer("auction_settle", ledger.AccountOf(bid.Bidder), ledger.AccountMarket, debit, ref)); err != nil {
			return 0, err
		}
	}
	return debit, nil
}

func recordSale(ctx context.Context, tx ledger.Tx, bid ledger.Bid, value int64) (*ledger.Sale, error) {
	sale := &ledger.Sale{Item: bid.Item, Winner: bid.Bidder, Amount: bid.Amount, ValueAtSale: value, BidID: bid.ID}
	if err := tx.InsertSale(ctx, sale); err != nil {
		return nil, err
	}
	return sale, nil
}

func settleClub(ctx context.Context, tx ledger.Tx, bid ledger.Bid) (*ledger.Sale, error) {
	club, err := tx.Club(ctx, bid.Item.ID)
	if err != nil {
		return nil, err
	}
	sale, err := recordSale(ctx, tx, bid, club.Value)
	if err != nil {
		return nil, err
	}
	club.Owner = bid.Bidder
	club.LastBidPrice = bid.Amount
	if err := tx.UpdateClub(ctx, club); err != nil {
		return nil, err
	}
	shares, err := ledger.OwnershipShares(ctx, tx, club.ID, bid.Bidder)
	if err != nil {
		return nil, err
	}
	return sale, tx.ReplaceClubShares(ctx, club.ID, shares)
}

func settleDuelist(ctx context.Context, tx ledger.Tx, bid ledger.Bid) (*ledger.Sale, *int64, error) {
	d, err := tx.Duelist(ctx, bid.Item.ID)
	if err != nil {
		return nil, nil, err
	}
	sale, err := recordSale(ctx, tx, bid, d.Value)
	if err != nil {
		return nil, nil, err
	}
	clubID, err := assignClub(ctx, tx, bid)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.UpsertContract(ctx, ledger.Contract{
		DuelistID:     d.ID,
		ClubID:        clubID,
		Owner:         bid.Bidder,
		Salary:        d.ExpectedSalary,
		PurchasePrice: bid.Amount,
	}); err != nil {
		return nil, nil, err
	}
	d.OwnedBy = bid.Bidder
	d.ClubID = clubID
	d.LastBidPrice = bid.Amount
	return sale, clubID, tx.UpdateDuelist(ctx, d)
}

// assignClub prefers the club named on the bid when the winner still owns
// it, then any club the winner owns. nil means signed but clubless.
func assignClub(ctx context.Context, tx ledger.Tx, bid ledger.Bid) (*int64, error) {
	if bid.ClubID != nil {
		club, err := tx.Club(ctx, *bid.ClubID)
		switch {
		case err == nil && club.Owner.Equal(bid.Bidder):
			id := club.ID
			return &id, nil
		case err != nil && !errors.Is(err, ledger.ErrUnknownItem):
			return nil, err
		}
	}
	owned, err := tx.ClubsOwnedBy(ctx, bid.Bidder)
	if err != nil || len(owned) == 0 {
		return nil, err
	}
	id := owned[0].ID
	return &id, nil
}
