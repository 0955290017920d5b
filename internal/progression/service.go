package progression

import (
	"context"
	"fmt"
	"log/slog"

	"auctionhouse/internal/ledger"
)

type Config struct {
	Table     Table
	WinValue  int64
	LossValue int64
}

type Service struct {
	store ledger.Store
	locks *ledger.ItemLocks
	log   *slog.Logger
	cfg   Config
}

func NewService(store ledger.Store, locks *ledger.ItemLocks, logger *slog.Logger, cfg Config) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if locks == nil {
		locks = &ledger.ItemLocks{}
	}
	if len(cfg.Table) == 0 {
		cfg.Table = DefaultTable()
	}
	return &Service{store: store, locks: locks, log: logger, cfg: cfg}
}

func (s *Service) Table() Table { return s.cfg.Table }

type ClubChange struct {
	ClubID      int64   `json:"club_id"`
	TotalWins   int64   `json:"total_wins"`
	ValueBefore int64   `json:"value_before"`
	ValueAfter  int64   `json:"value_after"`
	Level       string  `json:"level"`
	LevelsUp    []Level `json:"levels_up,omitempty"`
}

type BattleResult struct {
	Winner ClubChange `json:"winner"`
	Loser  ClubChange `json:"loser"`
}

// RecordBattle credits one win to the winner, moves both club values by the
// configured swings and applies any level bonus the winner reaches.
func (s *Service) RecordBattle(ctx context.Context, winnerID, loserID int64) (BattleResult, error) {
	if winnerID == loserID {
		return BattleResult{}, fmt.Errorf("%w: club %d cannot battle itself", ledger.ErrSelfTrade, winnerID)
	}
	unlock := s.lockClubs(winnerID, loserID)
	defer unlock()

	var res BattleResult
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		winner, err := tx.Club(ctx, winnerID)
		if err != nil {
			return err
		}
		loser, err := tx.Club(ctx, loserID)
		if err != nil {
			return err
		}
		res.Winner = s.applyWins(&winner, 1, s.cfg.WinValue)

		res.Loser = ClubChange{ClubID: loser.ID, TotalWins: loser.TotalWins, ValueBefore: loser.Value, Level: loser.LevelName}
		loser.Value -= s.cfg.LossValue
		if loser.Value < 0 {
			loser.Value = 0
		}
		res.Loser.ValueAfter = loser.Value

		if err := tx.UpdateClub(ctx, winner); err != nil {
			return err
		}
		return tx.UpdateClub(ctx, loser)
	})
	if err != nil {
		return BattleResult{}, err
	}
	s.log.Info("battle recorded", "winner", winnerID, "loser", loserID, "winner_wins", res.Winner.TotalWins, "winner_level", res.Winner.Level)
	return res, nil
}

// GrantWins adds n wins at once. Every threshold crossed pays its bonus.
func (s *Service) GrantWins(ctx context.Context, clubID, n int64) (ClubChange, error) {
	if n <= 0 {
		return ClubChange{}, fmt.Errorf("%w: wins must be positive", ledger.ErrInvalidAmount)
	}
	unlock := s.locks.Lock(ledger.ClubKey(clubID))
	defer unlock()

	var change ClubChange
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		club, err := tx.Club(ctx, clubID)
		if err != nil {
			return err
		}
		change = s.applyWins(&club, n, 0)
		return tx.UpdateClub(ctx, club)
	})
	if err != nil {
		return ClubChange{}, err
	}
	s.log.Info("wins granted", "club_id", clubID, "wins", n, "level", change.Level, "levels_up", len(change.LevelsUp))
	return change, nil
}

func (s *Service) Standing(ctx context.Context, clubID int64) (Standing, error) {
	var wins int64
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		club, err := tx.Club(ctx, clubID)
		wins = club.TotalWins
		return err
	})
	if err != nil {
		return Standing{}, err
	}
	return s.cfg.Table.Standing(wins), nil
}

func (s *Service) applyWins(club *ledger.Club, n, valueSwing int64) ClubChange {
	change := ClubChange{ClubID: club.ID, ValueBefore: club.Value}
	before := club.TotalWins
	club.TotalWins += n
	club.Value += valueSwing
	change.LevelsUp = s.cfg.Table.Crossed(before, club.TotalWins)
	for _, lvl := range change.LevelsUp {
		club.Value += lvl.Bonus
		club.LevelName = lvl.Name
	}
	if club.LevelName == "" {
		club.LevelName = s.cfg.Table.Standing(club.TotalWins).Level
	}
	change.TotalWins = club.TotalWins
	change.ValueAfter = club.Value
	change.Level = club.LevelName
	return change
}

// lockClubs takes both item locks in id order so two battles between the
// same pair cannot deadlock.
func (s *Service) lockClubs(a, b int64) func() {
	if a > b {
		a, b = b, a
	}
	first := s.locks.Lock(ledger.ClubKey(a))
	second := s.locks.Lock(ledger.ClubKey(b))
	return func() {
		second()
		first()
	}
}
