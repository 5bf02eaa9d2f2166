package order

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, s := range append(sequence, StatusCancelled) {
		got, err := ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStatus("pending")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = ParseStatus("")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestParseItemStatus(t *testing.T) {
	got, err := ParseItemStatus("SERVED")
	require.NoError(t, err)
	assert.Equal(t, ItemServed, got)

	_, err = ParseItemStatus("COMPLETED")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestStatusPredicates(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
		kitchen  bool
	}{
		{StatusPending, false, false},
		{StatusConfirmed, false, true},
		{StatusInPreparation, false, true},
		{StatusReady, false, false},
		{StatusServed, false, false},
		{StatusCompleted, true, false},
		{StatusCancelled, true, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
			assert.Equal(t, !tt.terminal, tt.status.Active())
			assert.Equal(t, tt.kitchen, tt.status.InKitchenQueue())
		})
	}
}

func TestTransitionPolicy_Check(t *testing.T) {
	lenient := TransitionPolicy{}
	strict := TransitionPolicy{Strict: true}

	tests := []struct {
		name    string
		policy  TransitionPolicy
		from    Status
		to      Status
		wantErr bool
	}{
		{"next step", strict, StatusPending, StatusConfirmed, false},
		{"skip lenient", lenient, StatusPending, StatusServed, false},
		{"skip strict", strict, StatusPending, StatusReady, true},
		{"complete from pending lenient", lenient, StatusPending, StatusCompleted, false},
		{"backwards lenient", lenient, StatusReady, StatusConfirmed, true},
		{"backwards strict", strict, StatusReady, StatusConfirmed, true},
		{"same status", strict, StatusReady, StatusReady, false},
		{"leave completed", lenient, StatusCompleted, StatusServed, true},
		{"leave cancelled", lenient, StatusCancelled, StatusPending, true},
		{"cancel completed", lenient, StatusCompleted, StatusCancelled, true},
		{"re-complete", lenient, StatusCompleted, StatusCompleted, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Check(tt.from, tt.to)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidTransition)
			var te *TransitionError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.from, te.From)
			assert.Equal(t, tt.to, te.To)
		})
	}
}

func TestTransitionPolicy_CancelReachable(t *testing.T) {
	for _, p := range []TransitionPolicy{{}, {Strict: true}} {
		for _, from := range sequence[:len(sequence)-1] {
			assert.NoError(t, p.Check(from, StatusCancelled), "%s strict=%v", from, p.Strict)
		}
		assert.Error(t, p.Check(StatusCompleted, StatusCancelled))
	}
}
