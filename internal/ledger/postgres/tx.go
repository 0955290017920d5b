package postgres

import (
	"context"
	"errors"
	"fmt"

	"auctionhouse/internal/ledger"

	"github.com/jackc/pgx/v5"
)

type txn struct {
	tx pgx.Tx
}

const clubColumns = `id, name, base_price, current_value, last_bid_price, owner, total_wins, level_name, created_at`

const duelistColumns = `id, name, base_price, current_value, expected_salary, last_bid_price, owned_by, club_id, created_at`

func scanClub(row pgx.Row) (ledger.Club, error) {
	var c ledger.Club
	var owner string
	if err := row.Scan(&c.ID, &c.Name, &c.BasePrice, &c.Value, &c.LastBidPrice, &owner, &c.TotalWins, &c.LevelName, &c.CreatedAt); err != nil {
		return c, err
	}
	id, err := ledger.ParseIdentity(owner)
	if err != nil {
		return c, fmt.Errorf("club %d owner: %w", c.ID, err)
	}
	c.Owner = id
	return c, nil
}

func scanDuelist(row pgx.Row) (ledger.Duelist, error) {
	var d ledger.Duelist
	var owner string
	if err := row.Scan(&d.ID, &d.Name, &d.BasePrice, &d.Value, &d.ExpectedSalary, &d.LastBidPrice, &owner, &d.ClubID, &d.CreatedAt); err != nil {
		return d, err
	}
	id, err := ledger.ParseIdentity(owner)
	if err != nil {
		return d, fmt.Errorf("duelist %d owner: %w", d.ID, err)
	}
	d.OwnedBy = id
	return d, nil
}

func (t *txn) Club(ctx context.Context, id int64) (ledger.Club, error) {
	c, err := scanClub(t.tx.QueryRow(ctx, `
		SELECT `+clubColumns+`
		FROM clubs
		WHERE id = $1
		FOR UPDATE
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return c, fmt.Errorf("%w: club %d", ledger.ErrUnknownItem, id)
	}
	return c, err
}

func (t *txn) Clubs(ctx context.Context) ([]ledger.Club, error) {
	return t.queryClubs(ctx, `SELECT `+clubColumns+` FROM clubs ORDER BY id`)
}

func (t *txn) ClubsOwnedBy(ctx context.Context, owner ledger.Identity) ([]ledger.Club, error) {
	return t.queryClubs(ctx, `SELECT `+clubColumns+` FROM clubs WHERE owner = $1 ORDER BY id`, owner.String())
}

func (t *txn) queryClubs(ctx context.Context, query string, args ...any) ([]ledger.Club, error) {
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Club
	for rows.Next() {
		c, err := scanClub(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *txn) InsertClub(ctx context.Context, c *ledger.Club) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO clubs (name, base_price, current_value, last_bid_price, owner, total_wins, level_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, c.Name, c.BasePrice, c.Value, c.LastBidPrice, c.Owner.String(), c.TotalWins, c.LevelName).Scan(&c.ID, &c.CreatedAt)
}

func (t *txn) UpdateClub(ctx context.Context, c ledger.Club) error {
	cmd, err := t.tx.Exec(ctx, `
		UPDATE clubs
		SET name = $1, base_price = $2, current_value = $3, last_bid_price = $4,
		    owner = $5, total_wins = $6, level_name = $7, updated_at = now()
		WHERE id = $8
	`, c.Name, c.BasePrice, c.Value, c.LastBidPrice, c.Owner.String(), c.TotalWins, c.LevelName, c.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: club %d", ledger.ErrUnknownItem, c.ID)
	}
	return nil
}

func (t *txn) SetClubValue(ctx context.Context, id, value int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE clubs SET current_value = $1, updated_at = now() WHERE id = $2`, value, id)
	return err
}

func (t *txn) DeleteClub(ctx context.Context, id int64) error {
	cascade := []string{
		`DELETE FROM contracts WHERE club_id = $1`,
		`UPDATE duelists SET club_id = NULL, updated_at = now() WHERE club_id = $1`,
		`DELETE FROM club_shares WHERE club_id = $1`,
		`DELETE FROM bids WHERE item_type = 'club' AND item_id = $1`,
	}
	for _, stmt := range cascade {
		if _, err := t.tx.Exec(ctx, stmt, id); err != nil {
			return err
		}
	}
	cmd, err := t.tx.Exec(ctx, `DELETE FROM clubs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: club %d", ledger.ErrUnknownItem, id)
	}
	return nil
}

func (t *txn) Duelist(ctx context.Context, id int64) (ledger.Duelist, error) {
	d, err := scanDuelist(t.tx.QueryRow(ctx, `
		SELECT `+duelistColumns+`
		FROM duelists
		WHERE id = $1
		FOR UPDATE
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return d, fmt.Errorf("%w: duelist %d", ledger.ErrUnknownItem, id)
	}
	return d, err
}

func (t *txn) Duelists(ctx context.Context) ([]ledger.Duelist, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+duelistColumns+` FROM duelists ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Duelist
	for rows.Next() {
		d, err := scanDuelist(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (t *txn) InsertDuelist(ctx context.Context, d *ledger.Duelist) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO duelists (name, base_price, current_value, expected_salary, last_bid_price, owned_by, club_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, d.Name, d.BasePrice, d.Value, d.ExpectedSalary, d.LastBidPrice, d.OwnedBy.String(), d.ClubID).Scan(&d.ID, &d.CreatedAt)
}

func (t *txn) UpdateDuelist(ctx context.Context, d ledger.Duelist) error {
	cmd, err := t.tx.Exec(ctx, `
		UPDATE duelists
		SET name = $1, base_price = $2, current_value = $3, expected_salary = $4,
		    last_bid_price = $5, owned_by = $6, club_id = $7, updated_at = now()
		WHERE id = $8
	`, d.Name, d.BasePrice, d.Value, d.ExpectedSalary, d.LastBidPrice, d.OwnedBy.String(), d.ClubID, d.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: duelist %d", ledger.ErrUnknownItem, d.ID)
	}
	return nil
}

func (t *txn) SetDuelistValue(ctx context.Context, id, value int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE duelists SET current_value = $1, updated_at = now() WHERE id = $2`, value, id)
	return err
}

func (t *txn) DeleteDuelist(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM contracts WHERE duelist_id = $1`, id); err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM bids WHERE item_type = 'duelist' AND item_id = $1`, id); err != nil {
		return err
	}
	cmd, err := t.tx.Exec(ctx, `DELETE FROM duelists WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: duelist %d", ledger.ErrUnknownItem, id)
	}
	return nil
}

func scanBid(row pgx.Row) (ledger.Bid, error) {
	var b ledger.Bid
	var typ, bidder string
	if err := row.Scan(&b.ID, &typ, &b.Item.ID, &bidder, &b.Amount, &b.ClubID, &b.PlacedAt); err != nil {
		return b, err
	}
	b.Item.Type = ledger.ItemType(typ)
	id, err := ledger.ParseIdentity(bidder)
	if err != nil {
		return b, fmt.Errorf("bid %d bidder: %w", b.ID, err)
	}
	b.Bidder = id
	return b, nil
}

func (t *txn) Bids(ctx context.Context, key ledger.ItemKey) ([]ledger.Bid, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, item_type, item_id, bidder, amount, club_id, placed_at
		FROM bids
		WHERE item_type = $1 AND item_id = $2
		ORDER BY id
	`, string(key.Type), key.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (t *txn) HighestBid(ctx context.Context, key ledger.ItemKey) (ledger.Bid, error) {
	b, err := scanBid(t.tx.QueryRow(ctx, `
		SELECT id, item_type, item_id, bidder, amount, club_id, placed_at
		FROM bids
		WHERE item_type = $1 AND item_id = $2
		ORDER BY amount DESC, id DESC
		LIMIT 1
	`, string(key.Type), key.ID))
	if errors.Is(err, pgx.ErrNoRows) {
		return b, fmt.Errorf("%w: %s", ledger.ErrNoBids, key)
	}
	return b, err
}

func (t *txn) InsertBid(ctx context.Context, b *ledger.Bid) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO bids (item_type, item_id, bidder, amount, club_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, placed_at
	`, string(b.Item.Type), b.Item.ID, b.Bidder.String(), b.Amount, b.ClubID).Scan(&b.ID, &b.PlacedAt)
}

func (t *txn) DeleteBids(ctx context.Context, key ledger.ItemKey) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM bids WHERE item_type = $1 AND item_id = $2`, string(key.Type), key.ID)
	return err
}

func (t *txn) Wallet(ctx context.Context, userID string) (ledger.Wallet, error) {
	w := ledger.Wallet{UserID: userID}
	err := t.tx.QueryRow(ctx, `
		SELECT balance
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(&w.Balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return w, fmt.Errorf("%w: %s", ledger.ErrWalletNotFound, userID)
	}
	return w, err
}

func (t *txn) CreateWallet(ctx context.Context, userID string, balance int64) (bool, error) {
	cmd, err := t.tx.Exec(ctx, `
		INSERT INTO wallets (user_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, balance)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (t *txn) SetWalletBalance(ctx context.Context, userID string, balance int64) error {
	cmd, err := t.tx.Exec(ctx, `
		UPDATE wallets
		SET balance = $1, updated_at = now()
		WHERE user_id = $2
	`, balance, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrWalletNotFound, userID)
	}
	return nil
}

func (t *txn) Group(ctx context.Context, name string) (ledger.GroupFund, error) {
	g := ledger.GroupFund{Name: name}
	err := t.tx.QueryRow(ctx, `
		SELECT funds, created_at
		FROM investor_groups
		WHERE name = $1
		FOR UPDATE
	`, name).Scan(&g.Funds, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return g, fmt.Errorf("%w: %s", ledger.ErrGroupNotFound, name)
	}
	return g, err
}

func (t *txn) InsertGroup(ctx context.Context, g ledger.GroupFund) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO investor_groups (name, funds)
		VALUES ($1, $2)
	`, g.Name, g.Funds)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ledger.ErrGroupExists, g.Name)
	}
	return err
}

func (t *txn) SetGroupFunds(ctx context.Context, name string, funds int64) error {
	cmd, err := t.tx.Exec(ctx, `
		UPDATE investor_groups
		SET funds = $1, updated_at = now()
		WHERE name = $2
	`, funds, name)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrGroupNotFound, name)
	}
	return nil
}

func (t *txn) Members(ctx context.Context, group string) ([]ledger.Member, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT group_name, user_id, share_pct
		FROM group_members
		WHERE group_name = $1
		ORDER BY user_id
		FOR UPDATE
	`, group)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Member
	for rows.Next() {
		var m ledger.Member
		if err := rows.Scan(&m.Group, &m.UserID, &m.SharePct); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (t *txn) Member(ctx context.Context, group, userID string) (ledger.Member, error) {
	m := ledger.Member{Group: group, UserID: userID}
	err := t.tx.QueryRow(ctx, `
		SELECT share_pct
		FROM group_members
		WHERE group_name = $1 AND user_id = $2
		FOR UPDATE
	`, group, userID).Scan(&m.SharePct)
	if errors.Is(err, pgx.ErrNoRows) {
		return m, fmt.Errorf("%w: %s in %s", ledger.ErrNotMember, userID, group)
	}
	return m, err
}

func (t *txn) UpsertMember(ctx context.Context, m ledger.Member) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO group_members (group_name, user_id, share_pct)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_name, user_id) DO UPDATE SET share_pct = EXCLUDED.share_pct
	`, m.Group, m.UserID, m.SharePct)
	return err
}

func (t *txn) DeleteMember(ctx context.Context, group, userID string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM group_members WHERE group_name = $1 AND user_id = $2`, group, userID)
	return err
}

func (t *txn) ClubShares(ctx context.Context, clubID int64) ([]ledger.Share, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT club_id, user_id, pct
		FROM club_shares
		WHERE club_id = $1
		ORDER BY user_id
	`, clubID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Share
	for rows.Next() {
		var s ledger.Share
		if err := rows.Scan(&s.ClubID, &s.UserID, &s.Pct); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (t *txn) ReplaceClubShares(ctx context.Context, clubID int64, shares []ledger.Share) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM club_shares WHERE club_id = $1`, clubID); err != nil {
		return err
	}
	for _, s := range shares {
		if s.Pct <= 0 {
			continue
		}
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO club_shares (club_id, user_id, pct)
			VALUES ($1, $2, $3)
		`, clubID, s.UserID, s.Pct); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) Contract(ctx context.Context, duelistID int64) (ledger.Contract, error) {
	c := ledger.Contract{DuelistID: duelistID}
	var owner string
	err := t.tx.QueryRow(ctx, `
		SELECT club_id, owner, salary, purchase_price, signed_at
		FROM contracts
		WHERE duelist_id = $1
	`, duelistID).Scan(&c.ClubID, &owner, &c.Salary, &c.PurchasePrice, &c.SignedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, fmt.Errorf("%w: duelist %d", ledger.ErrNoContract, duelistID)
	}
	if err != nil {
		return c, err
	}
	c.Owner, err = ledger.ParseIdentity(owner)
	return c, err
}

func (t *txn) UpsertContract(ctx context.Context, c ledger.Contract) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO contracts (duelist_id, club_id, owner, salary, purchase_price, signed_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (duelist_id) DO UPDATE
		SET club_id = EXCLUDED.club_id,
		    owner = EXCLUDED.owner,
		    salary = EXCLUDED.salary,
		    purchase_price = EXCLUDED.purchase_price,
		    signed_at = now()
	`, c.DuelistID, c.ClubID, c.Owner.String(), c.Salary, c.PurchasePrice)
	return err
}

func (t *txn) InsertSale(ctx context.Context, s *ledger.Sale) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO sales (item_type, item_id, winner, amount, value_at_sale, bid_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, settled_at
	`, string(s.Item.Type), s.Item.ID, s.Winner.String(), s.Amount, s.ValueAtSale, s.BidID).Scan(&s.ID, &s.SettledAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: bid %d", ledger.ErrAlreadySettled, s.BidID)
	}
	return err
}

func (t *txn) AppendEntries(ctx context.Context, entries []ledger.Entry) error {
	for _, e := range entries {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO ledger_entries (tx_group, account, delta, action, ref)
			VALUES ($1, $2, $3, $4, $5)
		`, e.TxGroup, e.Account, e.Delta, e.Action, e.Ref); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) Entries(ctx context.Context, account string) ([]ledger.Entry, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT tx_group::text, account, delta, action, ref
		FROM ledger_entries
		WHERE account = $1
		ORDER BY id
	`, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		if err := rows.Scan(&e.TxGroup, &e.Account, &e.Delta, &e.Action, &e.Ref); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
