package signal

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/peercall/internal/adapters/rtc"
	"github.com/dkeye/peercall/internal/call"
	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two real sessions negotiate through the HTTP mailbox on loopback.
func TestSessionsOverHTTPMailbox(t *testing.T) {
	if testing.Short() {
		t.Skip("end-to-end negotiation in short mode")
	}
	srv := newMailboxServer(t)
	peers := rtc.NewFactory(rtc.Config{})
	devices := media.SyntheticDevices{Microphone: true, Camera: true}
	cfg := call.Config{PollInterval: 50 * time.Millisecond, ConnectTimeout: 15 * time.Second, NotifyTimeout: time.Second}

	aliceT := srv.transport(t, "alice")
	bobT := srv.transport(t, "bob")
	alice := (&call.Factory{Transport: aliceT, Peers: peers, Devices: devices, Config: cfg}).New()
	bob := (&call.Factory{Transport: bobT, Peers: peers, Devices: devices, Config: cfg}).New()
	defer alice.Cleanup()
	defer bob.Cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	id, err := alice.StartCall(ctx, "bob", domain.MediaVideo)
	require.NoError(t, err)

	var incoming []core.IncomingCall
	require.Eventually(t, func() bool {
		calls, err := bobT.IncomingCalls(ctx)
		if err != nil || len(calls) == 0 {
			return false
		}
		incoming = calls
		return true
	}, 5*time.Second, 50*time.Millisecond)
	require.Len(t, incoming, 1)
	assert.Equal(t, id, incoming[0].CallID)
	assert.Equal(t, domain.MediaVideo, incoming[0].Kind)
	require.NoError(t, bob.AnswerCall(ctx, incoming[0].CallID, incoming[0].Offer, incoming[0].Kind))

	state, err := alice.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateConnected, state)
	state, err = bob.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateConnected, state)

	assert.NotEmpty(t, bob.RemoteStream().Tracks())
	assert.NotEmpty(t, alice.RemoteStream().Tracks())

	alice.EndCall(ctx)
	require.Eventually(t, func() bool { return bob.State() == domain.StateEnded }, 5*time.Second, 20*time.Millisecond)
	assert.ErrorIs(t, bob.Err(), core.ErrCallEnded)
}
