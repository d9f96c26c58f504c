// Package fault defines the error taxonomy shared by the staking and vesting
// ledgers. Every failure returned by a core operation is a *Error carrying one
// of four kinds and wrapping a named sentinel.
package fault

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	KindUnknown Kind = iota
	// KindInvalidInput covers bad tier indexes, out of range ledger indexes
	// and zero or otherwise unusable amounts.
	KindInvalidInput
	// KindStateViolation covers operations that are well formed but not
	// allowed in the current state.
	KindStateViolation
	// KindArithmeticFault is an overflow or underflow in accrual arithmetic.
	KindArithmeticFault
	// KindResourceExhaustion is a bounded ledger at capacity.
	KindResourceExhaustion
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindStateViolation:
		return "state_violation"
	case KindArithmeticFault:
		return "arithmetic_fault"
	case KindResourceExhaustion:
		return "resource_exhaustion"
	default:
		return "unknown"
	}
}

// Sentinels. Each one belongs to exactly one Kind, see KindOf.
var (
	ErrInvalidTier        = errors.New("invalid tier")
	ErrInvalidIndex       = errors.New("invalid record index")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidAddress     = errors.New("invalid address")
	ErrInvalidParams      = errors.New("invalid parameters")
	ErrStakeOutOfRange    = errors.New("stake amount out of pool range")
	ErrNoRewardsToClaim   = errors.New("no rewards to claim")
	ErrStakeNotMatured    = errors.New("staking period has not ended")
	ErrRecordNotActive    = errors.New("record not active")
	ErrPoolInactive       = errors.New("pool not initialized")
	ErrClaimRequired      = errors.New("pending rewards must be claimed first")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNoMoreReleases     = errors.New("no more releases")
	ErrSaleNotActive      = errors.New("sale not active")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrNotInitialized     = errors.New("not initialized")
	ErrAlreadyJoined      = errors.New("already participated")
	ErrReferrerSet        = errors.New("referrer already set")
	ErrClockUnavailable   = errors.New("clock unavailable")
	ErrTransferFailed     = errors.New("transfer failed")
	ErrOverflow           = errors.New("arithmetic overflow")
	ErrUnderflow          = errors.New("arithmetic underflow")
	ErrInconsistentLedger = errors.New("inconsistent ledger")
	ErrLedgerFull         = errors.New("maximum staking records reached")
)

var kinds = map[error]Kind{
	ErrInvalidTier:        KindInvalidInput,
	ErrInvalidIndex:       KindInvalidInput,
	ErrInvalidAmount:      KindInvalidInput,
	ErrInvalidAddress:     KindInvalidInput,
	ErrInvalidParams:      KindInvalidInput,
	ErrStakeOutOfRange:    KindInvalidInput,
	ErrNoRewardsToClaim:   KindStateViolation,
	ErrStakeNotMatured:    KindStateViolation,
	ErrRecordNotActive:    KindStateViolation,
	ErrPoolInactive:       KindStateViolation,
	ErrClaimRequired:      KindStateViolation,
	ErrUnauthorized:       KindStateViolation,
	ErrNoMoreReleases:     KindStateViolation,
	ErrSaleNotActive:      KindStateViolation,
	ErrInsufficientShares: KindStateViolation,
	ErrAlreadyInitialized: KindStateViolation,
	ErrNotInitialized:     KindStateViolation,
	ErrAlreadyJoined:      KindStateViolation,
	ErrReferrerSet:        KindStateViolation,
	ErrClockUnavailable:   KindStateViolation,
	ErrTransferFailed:     KindStateViolation,
	ErrOverflow:           KindArithmeticFault,
	ErrUnderflow:          KindArithmeticFault,
	ErrInconsistentLedger: KindArithmeticFault,
	ErrLedgerFull:         KindResourceExhaustion,
}

// Error is the concrete error returned by ledger operations.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match a bare Kind target built with Of.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// New wraps err for op. The kind is taken from an *Error already in the chain,
// otherwise from the first known sentinel found in it.
func New(op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		if fe.Op == "" {
			return &Error{Kind: fe.Kind, Op: op, Err: fe.Err}
		}
		return err
	}
	return &Error{Kind: KindOf(err), Op: op, Err: err}
}

// Of returns a target matching any *Error of kind k.
func Of(k Kind) error {
	return &Error{Kind: k}
}

// KindOf reports the kind of err.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	for sentinel, k := range kinds {
		if errors.Is(err, sentinel) {
			return k
		}
	}
	return KindUnknown
}

// Is reports whether err is of kind k.
func Is(err error, k Kind) bool {
	return KindOf(err) == k
}
