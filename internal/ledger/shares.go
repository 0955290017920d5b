package ledger

import "context"

// OwnershipShares builds the share records for a club owned by owner: one
// 100% record for a user, or the group's current non-zero member stakes.
func OwnershipShares(ctx context.Context, tx Tx, clubID int64, owner Identity) ([]Share, error) {
	if owner.IsZero() {
		return nil, nil
	}
	if !owner.IsGroup() {
		return []Share{{ClubID: clubID, UserID: owner.ID, Pct: MaxSharePct}}, nil
	}
	members, err := tx.Members(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	shares := make([]Share, 0, len(members))
	for _, m := range members {
		if m.SharePct > 0 {
			shares = append(shares, Share{ClubID: clubID, UserID: m.UserID, Pct: m.SharePct})
		}
	}
	return shares, nil
}

// SyncGroupShares rewrites the share records of every club the group owns
// from its current membership.
func SyncGroupShares(ctx context.Context, tx Tx, group string) error {
	clubs, err := tx.ClubsOwnedBy(ctx, Group(group))
	if err != nil {
		return err
	}
	for _, c := range clubs {
		shares, err := OwnershipShares(ctx, tx, c.ID, c.Owner)
		if err != nil {
			return err
		}
		if err := tx.ReplaceClubShares(ctx, c.ID, shares); err != nil {
			return err
		}
	}
	return nil
}
