package ownership

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"auctionhouse/internal/ledger"
	"auctionhouse/internal/notify"
)

// SellClubToMarket sells a solo-owned club back to the market at its current
// value and leaves it unowned.
func (s *Service) SellClubToMarket(ctx context.Context, clubID int64, seller string) (ledger.Club, int64, error) {
	unlock := s.locks.Lock(ledger.ClubKey(clubID))
	defer unlock()

	var club ledger.Club
	var proceeds int64
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		if club, err = tx.Club(ctx, clubID); err != nil {
			return err
		}
		if !club.Owner.Equal(ledger.User(seller)) {
			return fmt.Errorf("%w: club %d", ledger.ErrNotClubOwner, clubID)
		}
		proceeds = club.Value
		if err := creditWallet(ctx, tx, seller, proceeds); err != nil {
			return err
		}
		club.Owner = ledger.Identity{}
		if err := tx.UpdateClub(ctx, club); err != nil {
			return err
		}
		if err := tx.ReplaceClubShares(ctx, clubID, nil); err != nil {
			return err
		}
		if proceeds == 0 {
			return nil
		}
		return tx.AppendEntries(ctx, ledger.Transfer("club_market_sale", ledger.AccountMarket, ledger.AccountOf(ledger.User(seller)), proceeds, clubRef(clubID)))
	})
	if err != nil {
		return ledger.Club{}, 0, err
	}
	s.log.Info("club sold to market", "club", clubID, "seller", seller, "proceeds", proceeds)
	return club, proceeds, nil
}

// ProposeClubSale offers a solo-owned club to buyer at price. Nothing moves
// until the buyer accepts.
func (s *Service) ProposeClubSale(ctx context.Context, clubID int64, seller, buyer string, price int64) (Proposal, error) {
	if err := ledger.ValidateAmount(price); err != nil {
		return Proposal{}, err
	}
	if seller == buyer {
		return Proposal{}, ledger.ErrSelfTrade
	}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		club, err := tx.Club(ctx, clubID)
		if err != nil {
			return err
		}
		if !club.Owner.Equal(ledger.User(seller)) {
			return fmt.Errorf("%w: club %d", ledger.ErrNotClubOwner, clubID)
		}
		_, err = tx.Wallet(ctx, buyer)
		return err
	})
	if err != nil {
		return Proposal{}, err
	}
	p := s.handshakes.Propose(Proposal{
		Kind:         ClubSale,
		Proposer:     seller,
		Counterparty: buyer,
		ClubID:       clubID,
		Price:        price,
	})
	s.requestConfirmation(ctx, p, fmt.Sprintf("buying club %d from %s for %d", clubID, seller, price))
	return p, nil
}

// ProposeShareSale offers pct of seller's stake in a group-owned club to
// buyer. The price is the same percentage of the club's current value.
func (s *Service) ProposeShareSale(ctx context.Context, group string, clubID int64, seller, buyer string, pct int64) (Proposal, error) {
	if err := ledger.ValidateSharePct(pct); err != nil {
		return Proposal{}, err
	}
	if seller == buyer {
		return Proposal{}, ledger.ErrSelfTrade
	}
	var price int64
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		club, err := tx.Club(ctx, clubID)
		if err != nil {
			return err
		}
		if err := checkShareSale(ctx, tx, club, group, seller, pct); err != nil {
			return err
		}
		price = ledger.PercentOf(club.Value, pct)
		return checkBalance(ctx, tx, buyer, price)
	})
	if err != nil {
		return Proposal{}, err
	}
	p := s.handshakes.Propose(Proposal{
		Kind:         ShareSale,
		Proposer:     seller,
		Counterparty: buyer,
		ClubID:       clubID,
		Group:        group,
		Pct:          pct,
		Price:        price,
	})
	s.requestConfirmation(ctx, p, fmt.Sprintf("buying %d%% of club %d from %s for %d", pct, clubID, seller, price))
	return p, nil
}

func (s *Service) requestConfirmation(ctx context.Context, p Proposal, summary string) {
	s.log.Info("confirmation requested", "id", p.ID, "kind", string(p.Kind), "club", p.ClubID, "counterparty", p.Counterparty)
	s.publish(ctx, notify.Event{
		Kind:         notify.ConfirmationRequested,
		Item:         ledger.ClubKey(p.ClubID),
		Amount:       p.Price,
		Confirmation: p.ID,
		Counterparty: ledger.User(p.Counterparty),
		Summary:      summary,
	})
}

func (s *Service) Proposal(id string) (Proposal, error) { return s.handshakes.Get(id) }

func (s *Service) Reject(id, actor string) (Proposal, error) {
	p, err := s.handshakes.Reject(id, actor)
	if err != nil {
		return Proposal{}, err
	}
	s.log.Info("confirmation rejected", "id", id, "actor", actor)
	return p, nil
}

// Accept commits the proposal on behalf of its counterparty. Everything is
// re-checked against current state because the world may have moved since
// the proposal was made.
func (s *Service) Accept(ctx context.Context, id, actor string) (Proposal, error) {
	p, err := s.handshakes.claim(id, actor)
	if err != nil {
		return Proposal{}, err
	}
	unlock := s.locks.Lock(ledger.ClubKey(p.ClubID))
	err = s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		switch p.Kind {
		case ClubSale:
			return commitClubSale(ctx, tx, p)
		case ShareSale:
			return commitShareSale(ctx, tx, p)
		default:
			return fmt.Errorf("unknown proposal kind %q", p.Kind)
		}
	})
	unlock()
	resolved := s.handshakes.release(id, err == nil)
	if err != nil {
		s.log.Warn("confirmation accept failed", "id", id, "state", string(resolved.State), "err", err)
		return resolved, err
	}
	s.log.Info("confirmation accepted", "id", id, "kind", string(p.Kind), "club", p.ClubID, "price", p.Price)
	return resolved, nil
}

func commitClubSale(ctx context.Context, tx ledger.Tx, p Proposal) error {
	club, err := tx.Club(ctx, p.ClubID)
	if err != nil {
		return err
	}
	if !club.Owner.Equal(ledger.User(p.Proposer)) {
		return fmt.Errorf("%w: club %d changed hands", ledger.ErrNotClubOwner, p.ClubID)
	}
	if err := debitWallet(ctx, tx, p.Counterparty, p.Price); err != nil {
		return err
	}
	if err := creditWallet(ctx, tx, p.Proposer, p.Price); err != nil {
		return err
	}
	club.Owner = ledger.User(p.Counterparty)
	if err := tx.UpdateClub(ctx, club); err != nil {
		return err
	}
	shares, err := ledger.OwnershipShares(ctx, tx, club.ID, club.Owner)
	if err != nil {
		return err
	}
	if err := tx.ReplaceClubShares(ctx, club.ID, shares); err != nil {
		return err
	}
	return tx.AppendEntries(ctx, ledger.Transfer("club_sale",
		ledger.AccountOf(ledger.User(p.Counterparty)), ledger.AccountOf(ledger.User(p.Proposer)), p.Price, clubRef(club.ID)))
}

// commitShareSale moves pct between two members. The group's total stake is
// unchanged: the buyer joins if needed and the seller stays a member at zero.
func commitShareSale(ctx context.Context, tx ledger.Tx, p Proposal) error {
	club, err := tx.Club(ctx, p.ClubID)
	if err != nil {
		return err
	}
	if err := checkShareSale(ctx, tx, club, p.Group, p.Proposer, p.Pct); err != nil {
		return err
	}
	seller, err := tx.Member(ctx, p.Group, p.Proposer)
	if err != nil {
		return err
	}
	if err := debitWallet(ctx, tx, p.Counterparty, p.Price); err != nil {
		return err
	}
	if err := creditWallet(ctx, tx, p.Proposer, p.Price); err != nil {
		return err
	}
	buyer, err := tx.Member(ctx, p.Group, p.Counterparty)
	switch {
	case err == nil:
	case isNotMember(err):
		buyer = ledger.Member{Group: p.Group, UserID: p.Counterparty}
	default:
		return err
	}
	seller.SharePct -= p.Pct
	buyer.SharePct += p.Pct
	if err := tx.UpsertMember(ctx, seller); err != nil {
		return err
	}
	if err := tx.UpsertMember(ctx, buyer); err != nil {
		return err
	}
	if err := ledger.SyncGroupShares(ctx, tx, p.Group); err != nil {
		return err
	}
	return tx.AppendEntries(ctx, ledger.Transfer("share_sale",
		ledger.AccountOf(ledger.User(p.Counterparty)), ledger.AccountOf(ledger.User(p.Proposer)), p.Price, clubRef(club.ID)))
}

func checkShareSale(ctx context.Context, tx ledger.Tx, club ledger.Club, group, seller string, pct int64) error {
	if !club.Owner.IsGroup() || !club.Owner.Equal(ledger.Group(group)) {
		return fmt.Errorf("%w: club %d", ledger.ErrNotGroupOwned, club.ID)
	}
	m, err := tx.Member(ctx, group, seller)
	if err != nil {
		return err
	}
	if m.SharePct < pct {
		return fmt.Errorf("%w: %s holds %d%%", ledger.ErrInsufficientShares, seller, m.SharePct)
	}
	return nil
}

func checkBalance(ctx context.Context, tx ledger.Tx, userID string, amount int64) error {
	w, err := tx.Wallet(ctx, userID)
	if err != nil {
		return err
	}
	if w.Balance < amount {
		return fmt.Errorf("%w: wallet %s has %d, needs %d", ledger.ErrInsufficientFunds, userID, w.Balance, amount)
	}
	return nil
}

func isNotMember(err error) bool { return errors.Is(err, ledger.ErrNotMember) }

func clubRef(id int64) string { return "club:" + strconv.FormatInt(id, 10) }
