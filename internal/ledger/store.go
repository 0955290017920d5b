package ledger

import (
	"context"

	"github.com/google/uuid"
)

// Store is the durable ledger. Every read-modify-write happens inside WithTx;
// implementations lock the rows they hand out so concurrent flows on the same
// balance serialize.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}

type Tx interface {
	Club(ctx context.Context, id int64) (Club, error)
	Clubs(ctx context.Context) ([]Club, error)
	ClubsOwnedBy(ctx context.Context, owner Identity) ([]Club, error)
	InsertClub(ctx context.Context, c *Club) error
	UpdateClub(ctx context.Context, c Club) error
	SetClubValue(ctx context.Context, id, value int64) error
	// DeleteClub removes the club together with its contracts, share records
	// and pending bids, and unassigns duelists signed to it.
	DeleteClub(ctx context.Context, id int64) error

	Duelist(ctx context.Context, id int64) (Duelist, error)
	Duelists(ctx context.Context) ([]Duelist, error)
	InsertDuelist(ctx context.Context, d *Duelist) error
	UpdateDuelist(ctx context.Context, d Duelist) error
	SetDuelistValue(ctx context.Context, id, value int64) error
	DeleteDuelist(ctx context.Context, id int64) error

	Bids(ctx context.Context, key ItemKey) ([]Bid, error)
	HighestBid(ctx context.Context, key ItemKey) (Bid, error)
	InsertBid(ctx context.Context, b *Bid) error
	DeleteBids(ctx context.Context, key ItemKey) error

	Wallet(ctx context.Context, userID string) (Wallet, error)
	CreateWallet(ctx context.Context, userID string, balance int64) (bool, error)
	SetWalletBalance(ctx context.Context, userID string, balance int64) error

	Group(ctx context.Context, name string) (GroupFund, error)
	InsertGroup(ctx context.Context, g GroupFund) error
	SetGroupFunds(ctx context.Context, name string, funds int64) error
	Members(ctx context.Context, group string) ([]Member, error)
	Member(ctx context.Context, group, userID string) (Member, error)
	UpsertMember(ctx context.Context, m Member) error
	DeleteMember(ctx context.Context, group, userID string) error

	ClubShares(ctx context.Context, clubID int64) ([]Share, error)
	ReplaceClubShares(ctx context.Context, clubID int64, shares []Share) error

	Contract(ctx context.Context, duelistID int64) (Contract, error)
	UpsertContract(ctx context.Context, c Contract) error

	InsertSale(ctx context.Context, s *Sale) error
	AppendEntries(ctx context.Context, entries []Entry) error
	// Entries lists every ledger row for account, oldest first.
	Entries(ctx context.Context, account string) ([]Entry, error)
}

const AccountMarket = "market"

func AccountOf(id Identity) string {
	if id.IsGroup() {
		return "fund:" + id.ID
	}
	return "wallet:" + id.ID
}

// Transfer builds the balanced pair of ledger rows for one movement of funds.
func Transfer(action, from, to string, amount int64, ref string) []Entry {
	txID := uuid.NewString()
	return []Entry{
		{TxGroup: txID, Account: from, Delta: -amount, Action: action, Ref: ref},
		{TxGroup: txID, Account: to, Delta: amount, Action: action, Ref: ref},
	}
}
