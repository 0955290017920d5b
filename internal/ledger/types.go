package ledger

import "time"

type Club struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	BasePrice    int64     `json:"base_price"`
	Value        int64     `json:"current_value"`
	LastBidPrice int64     `json:"last_bid_price"`
	Owner        Identity  `json:"owner"`
	TotalWins    int64     `json:"total_wins"`
	LevelName    string    `json:"level_name"`
	CreatedAt    time.Time `json:"created_at"`
}

func (c Club) Item() Item {
	return Item{Key: ClubKey(c.ID), Name: c.Name, BasePrice: c.BasePrice, Value: c.Value, Owner: c.Owner}
}

// Duelist is a player that can be auctioned and signed to a club. A signed
// duelist with a nil ClubID is valid: the winner owned no club at settlement.
type Duelist struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	BasePrice      int64     `json:"base_price"`
	Value          int64     `json:"current_value"`
	ExpectedSalary int64     `json:"expected_salary"`
	LastBidPrice   int64     `json:"last_bid_price"`
	OwnedBy        Identity  `json:"owned_by"`
	ClubID         *int64    `json:"club_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (d Duelist) Item() Item {
	return Item{Key: DuelistKey(d.ID), Name: d.Name, BasePrice: d.BasePrice, Value: d.Value, Owner: d.OwnedBy}
}

// Item is the auction-facing projection of a club or duelist.
type Item struct {
	Key       ItemKey  `json:"key"`
	Name      string   `json:"name"`
	BasePrice int64    `json:"base_price"`
	Value     int64    `json:"current_value"`
	Owner     Identity `json:"owner"`
}

type Bid struct {
	ID       int64     `json:"id"`
	Item     ItemKey   `json:"item"`
	Bidder   Identity  `json:"bidder"`
	Amount   int64     `json:"amount"`
	ClubID   *int64    `json:"club_id,omitempty"`
	PlacedAt time.Time `json:"placed_at"`
}

type Wallet struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

type GroupFund struct {
	Name      string    `json:"name"`
	Funds     int64     `json:"funds"`
	CreatedAt time.Time `json:"created_at"`
}

type Member struct {
	Group    string `json:"group"`
	UserID   string `json:"user_id"`
	SharePct int64  `json:"share_pct"`
}

func SumShares(members []Member) int64 {
	var total int64
	for _, m := range members {
		total += m.SharePct
	}
	return total
}

// Share is one ownership record of a club: solo owners hold a single 100%
// record, group-owned clubs mirror the group's member percentages.
type Share struct {
	ClubID int64  `json:"club_id"`
	UserID string `json:"user_id"`
	Pct    int64  `json:"pct"`
}

type Contract struct {
	DuelistID     int64     `json:"duelist_id"`
	ClubID        *int64    `json:"club_id,omitempty"`
	Owner         Identity  `json:"owner"`
	Salary        int64     `json:"salary"`
	PurchasePrice int64     `json:"purchase_price"`
	SignedAt      time.Time `json:"signed_at"`
}

// Sale is the settlement record of an auction. BidID is unique so the same
// winning bid can never be settled twice.
type Sale struct {
	ID          int64     `json:"id"`
	Item        ItemKey   `json:"item"`
	Winner      Identity  `json:"winner"`
	Amount      int64     `json:"amount"`
	ValueAtSale int64     `json:"value_at_sale"`
	BidID       int64     `json:"bid_id"`
	SettledAt   time.Time `json:"settled_at"`
}

type Entry struct {
	TxGroup string `json:"tx_group"`
	Account string `json:"account"`
	Delta   int64  `json:"delta"`
	Action  string `json:"action"`
	Ref     string `json:"ref,omitempty"`
}
