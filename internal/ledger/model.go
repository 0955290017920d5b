package ledger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	MaxSharePct = int64(100)

	// MaxAmount bounds bid and transfer amounts so percentage math never overflows int64.
	MaxAmount = int64(1) << 50
)

type ItemType string

const (
	ItemClub    ItemType = "club"
	ItemDuelist ItemType = "duelist"
)

func ParseItemType(s string) (ItemType, error) {
	switch ItemType(strings.ToLower(strings.TrimSpace(s))) {
	case ItemClub:
		return ItemClub, nil
	case ItemDuelist:
		return ItemDuelist, nil
	default:
		return "", fmt.Errorf("%w: item type %q", ErrUnknownItem, s)
	}
}

// ItemKey identifies one auctionable item. It is the unit of serialization for
// bids, timers and settlement.
type ItemKey struct {
	Type ItemType `json:"type"`
	ID   int64    `json:"id"`
}

func ClubKey(id int64) ItemKey    { return ItemKey{Type: ItemClub, ID: id} }
func DuelistKey(id int64) ItemKey { return ItemKey{Type: ItemDuelist, ID: id} }

func (k ItemKey) String() string {
	return string(k.Type) + "/" + strconv.FormatInt(k.ID, 10)
}

func ParseItemKey(typ, id string) (ItemKey, error) {
	t, err := ParseItemType(typ)
	if err != nil {
		return ItemKey{}, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || n <= 0 {
		return ItemKey{}, fmt.Errorf("%w: item id %q", ErrUnknownItem, id)
	}
	return ItemKey{Type: t, ID: n}, nil
}

type IdentityKind string

const (
	KindUser  IdentityKind = "user"
	KindGroup IdentityKind = "group"
)

// Identity is one of the two economic actors: a personal user or an investor
// group. The zero value means "nobody" and is used for unowned items.
type Identity struct {
	Kind IdentityKind
	ID   string
}

func User(id string) Identity     { return Identity{Kind: KindUser, ID: strings.TrimSpace(id)} }
func Group(name string) Identity  { return Identity{Kind: KindGroup, ID: strings.TrimSpace(name)} }
func (i Identity) IsZero() bool   { return i.Kind == "" && i.ID == "" }
func (i Identity) IsGroup() bool  { return i.Kind == KindGroup }
func (i Identity) IsUser() bool   { return i.Kind == KindUser }
func (i Identity) Equal(o Identity) bool {
	return i.Kind == o.Kind && i.ID == o.ID
}

func (i Identity) String() string {
	if i.IsZero() {
		return ""
	}
	return string(i.Kind) + ":" + i.ID
}

var (
	userIDRE    = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)
	groupNameRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 _-]{1,31}$`)
)

// ParseIdentity decodes "user:<id>" or "group:<name>". An empty string yields
// the zero identity.
func ParseIdentity(s string) (Identity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Identity{}, nil
	}
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidIdentity, s)
	}
	var out Identity
	switch IdentityKind(strings.ToLower(strings.TrimSpace(kind))) {
	case KindUser:
		out = User(id)
	case KindGroup:
		out = Group(id)
	default:
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidIdentity, s)
	}
	if err := out.Validate(); err != nil {
		return Identity{}, err
	}
	return out, nil
}

func (i Identity) Validate() error {
	switch i.Kind {
	case KindUser:
		if !userIDRE.MatchString(i.ID) {
			return fmt.Errorf("%w: bad user id %q", ErrInvalidIdentity, i.ID)
		}
	case KindGroup:
		if err := ValidateGroupName(i.ID); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidIdentity, i.Kind)
	}
	return nil
}

func ValidateGroupName(name string) error {
	if !groupNameRE.MatchString(strings.TrimSpace(name)) {
		return fmt.Errorf("%w: group name must be 2-32 letters, digits, spaces, _ or -", ErrInvalidIdentity)
	}
	return nil
}

func (i Identity) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *Identity) UnmarshalText(b []byte) error {
	v, err := ParseIdentity(string(b))
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// PercentOf returns amount*pct/100 rounded half up.
func PercentOf(amount, pct int64) int64 {
	if amount <= 0 || pct <= 0 {
		return 0
	}
	return (amount*pct + 50) / 100
}

func ValidateAmount(amount int64) error {
	if amount <= 0 || amount > MaxAmount {
		return fmt.Errorf("%w: amount must be between 1 and %d", ErrInvalidAmount, MaxAmount)
	}
	return nil
}

func ValidateSharePct(pct int64) error {
	if pct <= 0 || pct > MaxSharePct {
		return fmt.Errorf("%w: share must be between 1 and %d", ErrInvalidShare, MaxSharePct)
	}
	return nil
}

func ValidateName(name string) error {
	clean := strings.TrimSpace(name)
	if clean == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(clean) > 64 {
		return fmt.Errorf("%w: name too long (max 64 chars)", ErrInvalidName)
	}
	return nil
}
