package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionStateTransitions(t *testing.T) {
	tests := []struct {
		from, to ConnectionState
		ok       bool
	}{
		{StateIdle, StateAcquiringMedia, true},
		{StateAcquiringMedia, StateNegotiating, true},
		{StateNegotiating, StateConnected, true},
		{StateConnected, StateEnded, true},
		{StateAcquiringMedia, StateFailed, true},
		{StateIdle, StateEnded, true},
		{StateConnected, StateNegotiating, false},
		{StateNegotiating, StateNegotiating, false},
		{StateEnded, StateFailed, false},
		{StateFailed, StateEnded, false},
		{StateEnded, StateConnected, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to))
		})
	}
}

func TestConnectionStateString(t *testing.T) {
	assert.Equal(t, "acquiring-media", StateAcquiringMedia.String())
	assert.Equal(t, "unknown", ConnectionState(42).String())
	b, err := StateConnected.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "connected", string(b))
}

func TestParseMediaKind(t *testing.T) {
	k, err := ParseMediaKind("video")
	assert.NoError(t, err)
	assert.True(t, k.HasVideo())

	_, err = ParseMediaKind("hologram")
	assert.ErrorIs(t, err, ErrUnknownMediaKind)
}

func TestNewUserID(t *testing.T) {
	id, err := NewUserID("  alice ")
	assert.NoError(t, err)
	assert.Equal(t, UserID("alice"), id)

	_, err = NewUserID("")
	assert.ErrorIs(t, err, ErrUserIDEmpty)

	long := make([]byte, MaxUserIDLen+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = NewUserID(string(long))
	assert.ErrorIs(t, err, ErrUserIDTooLong)
}
