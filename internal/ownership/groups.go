package ownership

import (
	"context"
	"fmt"
	"strings"

	"auctionhouse/internal/ledger"
)

type GroupInfo struct {
	ledger.GroupFund
	Members     []ledger.Member `json:"members"`
	TotalShares int64           `json:"total_shares"`
	Clubs       []ledger.Club   `json:"clubs"`
}

func (s *Service) GroupInfo(ctx context.Context, name string) (GroupInfo, error) {
	var info GroupInfo
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		g, err := tx.Group(ctx, name)
		if err != nil {
			return err
		}
		info.GroupFund = g
		if info.Members, err = tx.Members(ctx, name); err != nil {
			return err
		}
		info.TotalShares = ledger.SumShares(info.Members)
		info.Clubs, err = tx.ClubsOwnedBy(ctx, ledger.Group(name))
		return err
	})
	return info, err
}

// CreateGroup founds a group with founder as its first member.
func (s *Service) CreateGroup(ctx context.Context, name, founder string, sharePct int64) (GroupInfo, error) {
	name = strings.TrimSpace(name)
	if err := ledger.ValidateGroupName(name); err != nil {
		return GroupInfo{}, err
	}
	if err := ledger.User(founder).Validate(); err != nil {
		return GroupInfo{}, err
	}
	if err := validateStake(sharePct); err != nil {
		return GroupInfo{}, err
	}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.InsertGroup(ctx, ledger.GroupFund{Name: name}); err != nil {
			return err
		}
		return tx.UpsertMember(ctx, ledger.Member{Group: name, UserID: founder, SharePct: sharePct})
	})
	if err != nil {
		return GroupInfo{}, err
	}
	s.log.Info("group created", "group", name, "founder", founder, "share_pct", sharePct)
	return s.GroupInfo(ctx, name)
}

// JoinGroup adds user with sharePct, refusing anything that would take the
// group's allocated total past 100%.
func (s *Service) JoinGroup(ctx context.Context, name, userID string, sharePct int64) (ledger.Member, error) {
	if err := ledger.User(userID).Validate(); err != nil {
		return ledger.Member{}, err
	}
	if err := validateStake(sharePct); err != nil {
		return ledger.Member{}, err
	}
	m := ledger.Member{Group: name, UserID: userID, SharePct: sharePct}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if _, err := tx.Group(ctx, name); err != nil {
			return err
		}
		members, err := tx.Members(ctx, name)
		if err != nil {
			return err
		}
		for _, existing := range members {
			if existing.UserID == userID {
				return fmt.Errorf("%w: %s in %s", ledger.ErrAlreadyMember, userID, name)
			}
		}
		if total := ledger.SumShares(members); total+sharePct > ledger.MaxSharePct {
			return fmt.Errorf("%w: %d%% already allocated", ledger.ErrShareOverflow, total)
		}
		if err := tx.UpsertMember(ctx, m); err != nil {
			return err
		}
		return ledger.SyncGroupShares(ctx, tx, name)
	})
	if err != nil {
		return ledger.Member{}, err
	}
	s.log.Info("group joined", "group", name, "user", userID, "share_pct", sharePct)
	return m, nil
}

// LeaveGroup removes a member holding no shares and charges the configured
// penalty against the group fund. It returns the penalty taken.
func (s *Service) LeaveGroup(ctx context.Context, name, userID string) (int64, error) {
	var penalty int64
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		m, err := tx.Member(ctx, name, userID)
		if err != nil {
			return err
		}
		if m.SharePct > 0 {
			return fmt.Errorf("%w: %s still holds %d%%", ledger.ErrSharesHeld, userID, m.SharePct)
		}
		g, err := tx.Group(ctx, name)
		if err != nil {
			return err
		}
		penalty = ledger.PercentOf(g.Funds, s.cfg.LeavePenaltyPercent)
		if penalty > 0 {
			if err := tx.SetGroupFunds(ctx, name, g.Funds-penalty); err != nil {
				return err
			}
			if err := tx.AppendEntries(ctx, ledger.Transfer("leave_penalty", ledger.AccountOf(ledger.Group(name)), ledger.AccountMarket, penalty, userID)); err != nil {
				return err
			}
		}
		return tx.DeleteMember(ctx, name, userID)
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("group left", "group", name, "user", userID, "penalty", penalty)
	return penalty, nil
}

// Deposit moves amount from the member's wallet into the group fund.
func (s *Service) Deposit(ctx context.Context, name, userID string, amount int64) (GroupInfo, error) {
	if err := ledger.ValidateAmount(amount); err != nil {
		return GroupInfo{}, err
	}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if _, err := tx.Member(ctx, name, userID); err != nil {
			return err
		}
		g, err := tx.Group(ctx, name)
		if err != nil {
			return err
		}
		if err := debitWallet(ctx, tx, userID, amount); err != nil {
			return err
		}
		if err := tx.SetGroupFunds(ctx, name, g.Funds+amount); err != nil {
			return err
		}
		return tx.AppendEntries(ctx, ledger.Transfer("deposit", ledger.AccountOf(ledger.User(userID)), ledger.AccountOf(ledger.Group(name)), amount, ""))
	})
	if err != nil {
		return GroupInfo{}, err
	}
	s.log.Info("group deposit", "group", name, "user", userID, "amount", amount)
	return s.GroupInfo(ctx, name)
}

// Withdraw moves amount from the group fund into the member's wallet.
func (s *Service) Withdraw(ctx context.Context, name, userID string, amount int64) (GroupInfo, error) {
	if err := ledger.ValidateAmount(amount); err != nil {
		return GroupInfo{}, err
	}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if _, err := tx.Member(ctx, name, userID); err != nil {
			return err
		}
		g, err := tx.Group(ctx, name)
		if err != nil {
			return err
		}
		if g.Funds < amount {
			return fmt.Errorf("%w: group %s has %d", ledger.ErrInsufficientFunds, name, g.Funds)
		}
		if err := tx.SetGroupFunds(ctx, name, g.Funds-amount); err != nil {
			return err
		}
		if err := creditWallet(ctx, tx, userID, amount); err != nil {
			return err
		}
		return tx.AppendEntries(ctx, ledger.Transfer("withdraw", ledger.AccountOf(ledger.Group(name)), ledger.AccountOf(ledger.User(userID)), amount, ""))
	})
	if err != nil {
		return GroupInfo{}, err
	}
	s.log.Info("group withdraw", "group", name, "user", userID, "amount", amount)
	return s.GroupInfo(ctx, name)
}

func validateStake(pct int64) error {
	if pct < 0 || pct > ledger.MaxSharePct {
		return fmt.Errorf("%w: share must be between 0 and %d", ledger.ErrInvalidShare, ledger.MaxSharePct)
	}
	return nil
}
