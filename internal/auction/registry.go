package auction

import (
	"context"

	"auctionhouse/internal/ledger"
)

func (e *Engine) RegisterClub(ctx context.Context, name string, basePrice int64) (ledger.Club, error) {
	if err := ledger.ValidateName(name); err != nil {
		return ledger.Club{}, err
	}
	if err := ledger.ValidateAmount(basePrice); err != nil {
		return ledger.Club{}, err
	}
	club := ledger.Club{Name: name, BasePrice: basePrice, Value: basePrice, LevelName: e.cfg.InitialLevel}
	err := e.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.InsertClub(ctx, &club)
	})
	if err != nil {
		return ledger.Club{}, err
	}
	e.log.Info("club registered", "club_id", club.ID, "name", club.Name, "base_price", basePrice)
	return club, nil
}

func (e *Engine) RegisterDuelist(ctx context.Context, name string, basePrice, expectedSalary int64) (ledger.Duelist, error) {
	if err := ledger.ValidateName(name); err != nil {
		return ledger.Duelist{}, err
	}
	if err := ledger.ValidateAmount(basePrice); err != nil {
		return ledger.Duelist{}, err
	}
	if expectedSalary < 0 || expectedSalary > ledger.MaxAmount {
		return ledger.Duelist{}, ledger.ErrInvalidAmount
	}
	d := ledger.Duelist{Name: name, BasePrice: basePrice, Value: basePrice, ExpectedSalary: expectedSalary}
	err := e.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.InsertDuelist(ctx, &d)
	})
	if err != nil {
		return ledger.Duelist{}, err
	}
	e.log.Info("duelist registered", "duelist_id", d.ID, "name", d.Name, "base_price", basePrice)
	return d, nil
}

// RemoveClub deletes a club and its dependents in one transaction and drops
// its countdown.
func (e *Engine) RemoveClub(ctx context.Context, id int64) error {
	key := ledger.ClubKey(id)
	unlock := e.locks.Lock(key)
	defer unlock()
	err := e.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.DeleteClub(ctx, id)
	})
	if err != nil {
		return err
	}
	e.sched.Drop(key)
	e.log.Info("club removed", "club_id", id)
	return nil
}

func (e *Engine) RemoveDuelist(ctx context.Context, id int64) error {
	key := ledger.DuelistKey(id)
	unlock := e.locks.Lock(key)
	defer unlock()
	err := e.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.DeleteDuelist(ctx, id)
	})
	if err != nil {
		return err
	}
	e.sched.Drop(key)
	e.log.Info("duelist removed", "duelist_id", id)
	return nil
}

func (e *Engine) Club(ctx context.Context, id int64) (ledger.Club, error) {
	var c ledger.Club
	err := e.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		c, err = tx.Club(ctx, id)
		return err
	})
	return c, err
}

func (e *Engine) Clubs(ctx context.Context) ([]ledger.Club, error) {
	var out []ledger.Club
	err := e.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		out, err = tx.Clubs(ctx)
		return err
	})
	return out, err
}

func (e *Engine) Duelist(ctx context.Context, id int64) (ledger.Duelist, error) {
	var d ledger.Duelist
	err := e.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		d, err = tx.Duelist(ctx, id)
		return err
	})
	return d, err
}

func (e *Engine) Duelists(ctx context.Context) ([]ledger.Duelist, error) {
	var out []ledger.Duelist
	err := e.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		out, err = tx.Duelists(ctx)
		return err
	})
	return out, err
}
