package models

import "errors"

// Error kinds reported by the staking state machine. Callers match them with
// errors.Is; operations wrap them with context but never replace them.
var (
	ErrDeadlinePassed           = errors.New("deposit deadline passed")
	ErrBelowMinimum             = errors.New("amount below minimum stake")
	ErrBlacklisted              = errors.New("address blacklisted")
	ErrDuplicateDeposit         = errors.New("deposit already exists")
	ErrNoActiveDeposit          = errors.New("no active deposit")
	ErrNothingToClaim           = errors.New("nothing to claim")
	ErrUnauthorized             = errors.New("caller lacks required role")
	ErrInvalidConfiguration     = errors.New("invalid configuration")
	ErrInsufficientSpareBalance = errors.New("insufficient spare balance")
	ErrTransferFailed           = errors.New("token transfer failed")

	ErrInvalidAmount = errors.New("amount must be positive")
	ErrUnknownOp     = errors.New("unknown operation")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrDeadlinePassed, "deadline_passed"},
	{ErrBelowMinimum, "below_minimum"},
	{ErrBlacklisted, "blacklisted"},
	{ErrDuplicateDeposit, "duplicate_deposit"},
	{ErrNoActiveDeposit, "no_active_deposit"},
	{ErrNothingToClaim, "nothing_to_claim"},
	{ErrUnauthorized, "unauthorized"},
	{ErrInsufficientSpareBalance, "insufficient_spare_balance"},
	{ErrTransferFailed, "transfer_failed"},
	{ErrInvalidConfiguration, "invalid_configuration"},
	{ErrInvalidAmount, "invalid_amount"},
	{ErrUnknownOp, "unknown_operation"},
}

// ErrorKind returns the snake_case name of the error kind err wraps, or
// "internal".
func ErrorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}
