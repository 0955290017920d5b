package ledger

import "errors"

// Validation errors: reported to the caller, never retried, no state change.
var (
	ErrBiddingFrozen   = errors.New("bidding is frozen")
	ErrUnknownItem     = errors.New("unknown item")
	ErrBidTooLow       = errors.New("bid too low")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidName     = errors.New("invalid name")
	ErrInvalidIdentity = errors.New("invalid identity")
	ErrInvalidShare    = errors.New("invalid share percentage")
	ErrNotClubOwner    = errors.New("club is not owned by bidder")
	ErrNotMember       = errors.New("not a group member")
	ErrAlreadyMember   = errors.New("already a group member")
	ErrGroupNotFound   = errors.New("group not found")
	ErrGroupExists     = errors.New("group already exists")
	ErrWalletNotFound  = errors.New("wallet not found")
	ErrNoContract      = errors.New("no active contract")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrSelfTrade       = errors.New("cannot trade with yourself")
	ErrNotGroupOwned   = errors.New("club is not group owned")
)

// Funds and share errors: reported, no state change, caller must resubmit.
var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrShareOverflow      = errors.New("total group share would exceed 100%")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrSharesHeld         = errors.New("shares must be divested before leaving")
)

// Concurrency and settlement errors. ErrStaleTimer never reaches users.
var (
	ErrTxConflict     = errors.New("transaction conflict, retry")
	ErrAlreadySettled = errors.New("auction already settled")
	ErrStaleTimer     = errors.New("stale timer generation")
	ErrNoBids         = errors.New("no bids for item")
)

// Confirmation handshake errors.
var (
	ErrConfirmationNotFound = errors.New("confirmation not found")
	ErrConfirmationExpired  = errors.New("confirmation expired")
	ErrConfirmationClosed   = errors.New("confirmation already resolved")
)

var validationErrors = []error{
	ErrBiddingFrozen, ErrUnknownItem, ErrBidTooLow, ErrInvalidAmount, ErrInvalidName,
	ErrInvalidIdentity, ErrInvalidShare, ErrNotClubOwner, ErrNotMember, ErrAlreadyMember,
	ErrGroupNotFound, ErrGroupExists, ErrWalletNotFound, ErrNoContract, ErrUnauthorized,
	ErrSelfTrade, ErrNotGroupOwned, ErrNoBids,
}

var fundsErrors = []error{
	ErrInsufficientFunds, ErrShareOverflow, ErrInsufficientShares, ErrSharesHeld,
}

func IsValidation(err error) bool { return isAny(err, validationErrors) }
func IsFunds(err error) bool      { return isAny(err, fundsErrors) }

func isAny(err error, targets []error) bool {
	if err == nil {
		return false
	}
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
