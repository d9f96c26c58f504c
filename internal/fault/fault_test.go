package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDerivesKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"invalid tier", ErrInvalidTier, KindInvalidInput},
		{"not matured", ErrStakeNotMatured, KindStateViolation},
		{"overflow", ErrOverflow, KindArithmeticFault},
		{"ledger full", ErrLedgerFull, KindResourceExhaustion},
		{"wrapped sentinel", fmt.Errorf("bank: %w", ErrTransferFailed), KindStateViolation},
		{"foreign error", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New("stake", tt.err)
			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))
			assert.True(t, errors.Is(err, tt.err))
		})
	}
}

func TestNewKeepsExistingOp(t *testing.T) {
	inner := New("sync", ErrOverflow)
	outer := New("claim", inner)

	var fe *Error
	require.True(t, errors.As(outer, &fe))
	assert.Equal(t, "sync", fe.Op)
	assert.Equal(t, "sync: arithmetic_fault: arithmetic overflow", outer.Error())
}

func TestIsMatchesKind(t *testing.T) {
	err := New("unstake", ErrRecordNotActive)

	assert.True(t, errors.Is(err, Of(KindStateViolation)))
	assert.False(t, errors.Is(err, Of(KindInvalidInput)))
	assert.True(t, Is(err, KindStateViolation))
	assert.Nil(t, New("noop", nil))
}
