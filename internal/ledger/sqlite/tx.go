package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auctionhouse/internal/ledger"
)

type txn struct {
	tx  *sql.Tx
	now func() time.Time
}

type scanner interface {
	Scan(dest ...any) error
}

func (t *txn) stamp() int64 { return toMillis(t.now()) }

const clubColumns = `id, name, base_price, current_value, last_bid_price, owner, total_wins, level_name, created_at`

const duelistColumns = `id, name, base_price, current_value, expected_salary, last_bid_price, owned_by, club_id, created_at`

func scanClub(row scanner) (ledger.Club, error) {
	var c ledger.Club
	var owner string
	var created int64
	if err := row.Scan(&c.ID, &c.Name, &c.BasePrice, &c.Value, &c.LastBidPrice, &owner, &c.TotalWins, &c.LevelName, &created); err != nil {
		return c, err
	}
	c.CreatedAt = fromMillis(created)
	id, err := ledger.ParseIdentity(owner)
	if err != nil {
		return c, fmt.Errorf("club %d owner: %w", c.ID, err)
	}
	c.Owner = id
	return c, nil
}

func scanDuelist(row scanner) (ledger.Duelist, error) {
	var d ledger.Duelist
	var owner string
	var club sql.NullInt64
	var created int64
	if err := row.Scan(&d.ID, &d.Name, &d.BasePrice, &d.Value, &d.ExpectedSalary, &d.LastBidPrice, &owner, &club, &created); err != nil {
		return d, err
	}
	d.CreatedAt = fromMillis(created)
	d.ClubID = nullableID(club)
	id, err := ledger.ParseIdentity(owner)
	if err != nil {
		return d, fmt.Errorf("duelist %d owner: %w", d.ID, err)
	}
	d.OwnedBy = id
	return d, nil
}

func scanBid(row scanner) (ledger.Bid, error) {
	var b ledger.Bid
	var typ, bidder string
	var club sql.NullInt64
	var placed int64
	if err := row.Scan(&b.ID, &typ, &b.Item.ID, &bidder, &b.Amount, &club, &placed); err != nil {
		return b, err
	}
	b.Item.Type = ledger.ItemType(typ)
	b.ClubID = nullableID(club)
	b.PlacedAt = fromMillis(placed)
	id, err := ledger.ParseIdentity(bidder)
	if err != nil {
		return b, fmt.Errorf("bid %d bidder: %w", b.ID, err)
	}
	b.Bidder = id
	return b, nil
}

func nullableID(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

func idArg(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func collect[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func affected(res sql.Result, err error, notFound error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func (t *txn) Club(ctx context.Context, id int64) (ledger.Club, error) {
	c, err := scanClub(t.tx.QueryRowContext(ctx, `SELECT `+clubColumns+` FROM clubs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("%w: club %d", ledger.ErrUnknownItem, id)
	}
	return c, err
}

func (t *txn) Clubs(ctx context.Context) ([]ledger.Club, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+clubColumns+` FROM clubs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanClub)
}

func (t *txn) ClubsOwnedBy(ctx context.Context, owner ledger.Identity) ([]ledger.Club, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+clubColumns+` FROM clubs WHERE owner = ? ORDER BY id`, owner.String())
	if err != nil {
		return nil, err
	}
	return collect(rows, scanClub)
}

func (t *txn) InsertClub(ctx context.Context, c *ledger.Club) error {
	now := t.stamp()
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO clubs (name, base_price, current_value, last_bid_price, owner, total_wins, level_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.Name, c.BasePrice, c.Value, c.LastBidPrice, c.Owner.String(), c.TotalWins, c.LevelName, now, now)
	if err != nil {
		return err
	}
	c.ID, err = res.LastInsertId()
	c.CreatedAt = fromMillis(now)
	return err
}

func (t *txn) UpdateClub(ctx context.Context, c ledger.Club) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE clubs
		SET name = ?, base_price = ?, current_value = ?, last_bid_price = ?,
		    owner = ?, total_wins = ?, level_name = ?, updated_at = ?
		WHERE id = ?
	`, c.Name, c.BasePrice, c.Value, c.LastBidPrice, c.Owner.String(), c.TotalWins, c.LevelName, t.stamp(), c.ID)
	return affected(res, err, fmt.Errorf("%w: club %d", ledger.ErrUnknownItem, c.ID))
}

func (t *txn) SetClubValue(ctx context.Context, id, value int64) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE clubs SET current_value = ?, updated_at = ? WHERE id = ?`, value, t.stamp(), id)
	return err
}

func (t *txn) DeleteClub(ctx context.Context, id int64) error {
	cascade := []string{
		`DELETE FROM contracts WHERE club_id = ?`,
		`UPDATE duelists SET club_id = NULL WHERE club_id = ?`,
		`DELETE FROM club_shares WHERE club_id = ?`,
		`DELETE FROM bids WHERE item_type = 'club' AND item_id = ?`,
	}
	for _, stmt := range cascade {
		if _, err := t.tx.ExecContext(ctx, stmt, id); err != nil {
			return err
		}
	}
	res, err := t.tx.ExecContext(ctx, `DELETE FROM clubs WHERE id = ?`, id)
	return affected(res, err, fmt.Errorf("%w: club %d", ledger.ErrUnknownItem, id))
}

func (t *txn) Duelist(ctx context.Context, id int64) (ledger.Duelist, error) {
	d, err := scanDuelist(t.tx.QueryRowContext(ctx, `SELECT `+duelistColumns+` FROM duelists WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return d, fmt.Errorf("%w: duelist %d", ledger.ErrUnknownItem, id)
	}
	return d, err
}

func (t *txn) Duelists(ctx context.Context) ([]ledger.Duelist, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+duelistColumns+` FROM duelists ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanDuelist)
}

func (t *txn) InsertDuelist(ctx context.Context, d *ledger.Duelist) error {
	now := t.stamp()
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO duelists (name, base_price, current_value, expected_salary, last_bid_price, owned_by, club_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.Name, d.BasePrice, d.Value, d.ExpectedSalary, d.LastBidPrice, d.OwnedBy.String(), idArg(d.ClubID), now, now)
	if err != nil {
		return err
	}
	d.ID, err = res.LastInsertId()
	d.CreatedAt = fromMillis(now)
	return err
}

func (t *txn) UpdateDuelist(ctx context.Context, d ledger.Duelist) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE duelists
		SET name = ?, base_price = ?, current_value = ?, expected_salary = ?,
		    last_bid_price = ?, owned_by = ?, club_id = ?, updated_at = ?
		WHERE id = ?
	`, d.Name, d.BasePrice, d.Value, d.ExpectedSalary, d.LastBidPrice, d.OwnedBy.String(), idArg(d.ClubID), t.stamp(), d.ID)
	return affected(res, err, fmt.Errorf("%w: duelist %d", ledger.ErrUnknownItem, d.ID))
}

func (t *txn) SetDuelistValue(ctx context.Context, id, value int64) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE duelists SET current_value = ?, updated_at = ? WHERE id = ?`, value, t.stamp(), id)
	return err
}

func (t *txn) DeleteDuelist(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM contracts WHERE duelist_id = ?`, id); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM bids WHERE item_type = 'duelist' AND item_id = ?`, id); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `DELETE FROM duelists WHERE id = ?`, id)
	return affected(res, err, fmt.Errorf("%w: duelist %d", ledger.ErrUnknownItem, id))
}

const bidColumns = `id, item_type, item_id, bidder, amount, club_id, placed_at`

func (t *txn) Bids(ctx context.Context, key ledger.ItemKey) ([]ledger.Bid, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+bidColumns+`
		FROM bids
		WHERE item_type = ? AND item_id = ?
		ORDER BY id
	`, string(key.Type), key.ID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanBid)
}

func (t *txn) HighestBid(ctx context.Context, key ledger.ItemKey) (ledger.Bid, error) {
	b, err := scanBid(t.tx.QueryRowContext(ctx, `
		SELECT `+bidColumns+`
		FROM bids
		WHERE item_type = ? AND item_id = ?
		ORDER BY amount DESC, id DESC
		LIMIT 1
	`, string(key.Type), key.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return b, fmt.Errorf("%w: %s", ledger.ErrNoBids, key)
	}
	return b, err
}

func (t *txn) InsertBid(ctx context.Context, b *ledger.Bid) error {
	now := t.stamp()
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO bids (item_type, item_id, bidder, amount, club_id, placed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(b.Item.Type), b.Item.ID, b.Bidder.String(), b.Amount, idArg(b.ClubID), now)
	if err != nil {
		return err
	}
	b.ID, err = res.LastInsertId()
	b.PlacedAt = fromMillis(now)
	return err
}

func (t *txn) DeleteBids(ctx context.Context, key ledger.ItemKey) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM bids WHERE item_type = ? AND item_id = ?`, string(key.Type), key.ID)
	return err
}

func (t *txn) Wallet(ctx context.Context, userID string) (ledger.Wallet, error) {
	w := ledger.Wallet{UserID: userID}
	err := t.tx.QueryRowContext(ctx, `SELECT balance FROM wallets WHERE user_id = ?`, userID).Scan(&w.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return w, fmt.Errorf("%w: %s", ledger.ErrWalletNotFound, userID)
	}
	return w, err
}

func (t *txn) CreateWallet(ctx context.Context, userID string, balance int64) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, balance, t.stamp())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (t *txn) SetWalletBalance(ctx context.Context, userID string, balance int64) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE wallets SET balance = ?, updated_at = ? WHERE user_id = ?`, balance, t.stamp(), userID)
	return affected(res, err, fmt.Errorf("%w: %s", ledger.ErrWalletNotFound, userID))
}

func (t *txn) Group(ctx context.Context, name string) (ledger.GroupFund, error) {
	g := ledger.GroupFund{Name: name}
	var created int64
	err := t.tx.QueryRowContext(ctx, `SELECT funds, created_at FROM investor_groups WHERE name = ?`, name).Scan(&g.Funds, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return g, fmt.Errorf("%w: %s", ledger.ErrGroupNotFound, name)
	}
	g.CreatedAt = fromMillis(created)
	return g, err
}

func (t *txn) InsertGroup(ctx context.Context, g ledger.GroupFund) error {
	now := t.stamp()
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO investor_groups (name, funds, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, g.Name, g.Funds, now, now)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ledger.ErrGroupExists, g.Name)
	}
	return err
}

func (t *txn) SetGroupFunds(ctx context.Context, name string, funds int64) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE investor_groups SET funds = ?, updated_at = ? WHERE name = ?`, funds, t.stamp(), name)
	return affected(res, err, fmt.Errorf("%w: %s", ledger.ErrGroupNotFound, name))
}

func scanMember(row scanner) (ledger.Member, error) {
	var m ledger.Member
	err := row.Scan(&m.Group, &m.UserID, &m.SharePct)
	return m, err
}

func (t *txn) Members(ctx context.Context, group string) ([]ledger.Member, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT group_name, user_id, share_pct
		FROM group_members
		WHERE group_name = ?
		ORDER BY user_id
	`, group)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanMember)
}

func (t *txn) Member(ctx context.Context, group, userID string) (ledger.Member, error) {
	m, err := scanMember(t.tx.QueryRowContext(ctx, `
		SELECT group_name, user_id, share_pct
		FROM group_members
		WHERE group_name = ? AND user_id = ?
	`, group, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Member{Group: group, UserID: userID}, fmt.Errorf("%w: %s in %s", ledger.ErrNotMember, userID, group)
	}
	return m, err
}

func (t *txn) UpsertMember(ctx context.Context, m ledger.Member) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO group_members (group_name, user_id, share_pct)
		VALUES (?, ?, ?)
		ON CONFLICT (group_name, user_id) DO UPDATE SET share_pct = excluded.share_pct
	`, m.Group, m.UserID, m.SharePct)
	return err
}

func (t *txn) DeleteMember(ctx context.Context, group, userID string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_name = ? AND user_id = ?`, group, userID)
	return err
}

func (t *txn) ClubShares(ctx context.Context, clubID int64) ([]ledger.Share, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT club_id, user_id, pct
		FROM club_shares
		WHERE club_id = ?
		ORDER BY user_id
	`, clubID)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row scanner) (ledger.Share, error) {
		var s ledger.Share
		err := row.Scan(&s.ClubID, &s.UserID, &s.Pct)
		return s, err
	})
}

func (t *txn) ReplaceClubShares(ctx context.Context, clubID int64, shares []ledger.Share) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM club_shares WHERE club_id = ?`, clubID); err != nil {
		return err
	}
	for _, s := range shares {
		if s.Pct <= 0 {
			continue
		}
		if _, err := t.tx.ExecContext(ctx, `INSERT INTO club_shares (club_id, user_id, pct) VALUES (?, ?, ?)`, clubID, s.UserID, s.Pct); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) Contract(ctx context.Context, duelistID int64) (ledger.Contract, error) {
	c := ledger.Contract{DuelistID: duelistID}
	var club sql.NullInt64
	var owner string
	var signed int64
	err := t.tx.QueryRowContext(ctx, `
		SELECT club_id, owner, salary, purchase_price, signed_at
		FROM contracts
		WHERE duelist_id = ?
	`, duelistID).Scan(&club, &owner, &c.Salary, &c.PurchasePrice, &signed)
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("%w: duelist %d", ledger.ErrNoContract, duelistID)
	}
	if err != nil {
		return c, err
	}
	c.ClubID = nullableID(club)
	c.SignedAt = fromMillis(signed)
	c.Owner, err = ledger.ParseIdentity(owner)
	return c, err
}

func (t *txn) UpsertContract(ctx context.Context, c ledger.Contract) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO contracts (duelist_id, club_id, owner, salary, purchase_price, signed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (duelist_id) DO UPDATE
		SET club_id = excluded.club_id,
		    owner = excluded.owner,
		    salary = excluded.salary,
		    purchase_price = excluded.purchase_price,
		    signed_at = excluded.signed_at
	`, c.DuelistID, idArg(c.ClubID), c.Owner.String(), c.Salary, c.PurchasePrice, t.stamp())
	return err
}

func (t *txn) InsertSale(ctx context.Context, s *ledger.Sale) error {
	now := t.stamp()
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO sales (item_type, item_id, winner, amount, value_at_sale, bid_id, settled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(s.Item.Type), s.Item.ID, s.Winner.String(), s.Amount, s.ValueAtSale, s.BidID, now)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: bid %d", ledger.ErrAlreadySettled, s.BidID)
	}
	if err != nil {
		return err
	}
	s.ID, err = res.LastInsertId()
	s.SettledAt = fromMillis(now)
	return err
}

func (t *txn) AppendEntries(ctx context.Context, entries []ledger.Entry) error {
	now := t.stamp()
	for _, e := range entries {
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO ledger_entries (tx_group, account, delta, action, ref, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, e.TxGroup, e.Account, e.Delta, e.Action, e.Ref, now); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) Entries(ctx context.Context, account string) ([]ledger.Entry, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT tx_group, account, delta, action, ref
		FROM ledger_entries
		WHERE account = ?
		ORDER BY id
	`, account)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row scanner) (ledger.Entry, error) {
		var e ledger.Entry
		err := row.Scan(&e.TxGroup, &e.Account, &e.Delta, &e.Action, &e.Ref)
		return e, err
	})
}
