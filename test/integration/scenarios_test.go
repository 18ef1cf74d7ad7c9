// Package integration implements end-to-end scenarios covering a single
// callback round-trip, key filter, duplicate registration,
// unregister-absent, statedump polling, and statedump agent + request.
package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	side "github.com/ehrlich-b/go-side"
)

func newRuntime() *side.Runtime {
	r := side.New()
	r.Init()
	return r
}

// Scenario 1: single callback round-trip.
func TestSingleCallbackRoundTrip(t *testing.T) {
	r := newRuntime()
	defer r.Exit()

	e0 := side.NewEvent("e0", false)
	h, err := r.RegisterEvents([]*side.EventDescription{e0})
	require.NoError(t, err)
	defer r.UnregisterEvents(h)

	var gotPayload any
	calls := 0
	cb := func(desc *side.EventDescription, payload any, priv any, callerPC uintptr) {
		calls++
		gotPayload = payload
		assert.Equal(t, "0xA", priv)
	}
	require.NoError(t, r.RegisterCallback(e0, cb, "0xA", side.MatchAll))

	r.Emit(e0, []int{42}, side.MatchAll)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []int{42}, gotPayload)

	require.NoError(t, r.UnregisterCallback(e0, cb, "0xA", side.MatchAll))

	calls = 0
	r.Emit(e0, []int{99}, side.MatchAll)
	assert.Equal(t, 0, calls)
}

// Scenario 2: key filter.
func TestKeyFilter(t *testing.T) {
	r := newRuntime()
	defer r.Exit()

	e0 := side.NewEvent("e0", false)
	h, err := r.RegisterEvents([]*side.EventDescription{e0})
	require.NoError(t, err)
	defer r.UnregisterEvents(h)

	var c1, c2 int
	cb1 := func(desc *side.EventDescription, payload any, priv any, callerPC uintptr) { c1++ }
	cb2 := func(desc *side.EventDescription, payload any, priv any, callerPC uintptr) { c2++ }

	require.NoError(t, r.RegisterCallback(e0, cb1, "p1", side.MatchAll))
	require.NoError(t, r.RegisterCallback(e0, cb2, "p2", 9))

	c1, c2 = 0, 0
	r.Emit(e0, nil, side.MatchAll)
	assert.Equal(t, 1, c1)
	assert.Equal(t, 1, c2)

	c1, c2 = 0, 0
	r.Emit(e0, nil, 9)
	assert.Equal(t, 1, c1)
	assert.Equal(t, 1, c2)

	c1, c2 = 0, 0
	r.Emit(e0, nil, 7)
	assert.Equal(t, 1, c1)
	assert.Equal(t, 0, c2)
}

// Scenario 3: duplicate registration.
func TestDuplicateRegistration(t *testing.T) {
	r := newRuntime()
	defer r.Exit()

	e0 := side.NewEvent("e0", false)
	h, _ := r.RegisterEvents([]*side.EventDescription{e0})
	defer r.UnregisterEvents(h)

	cb := func(desc *side.EventDescription, payload any, priv any, callerPC uintptr) {}
	require.NoError(t, r.RegisterCallback(e0, cb, "p", side.MatchAll))

	err := r.RegisterCallback(e0, cb, "p", side.MatchAll)
	require.Error(t, err)
	assert.True(t, side.IsCode(err, side.Exists))
	assert.Equal(t, uint32(1), e0.State.NrCallbacks())
}

// Scenario 4: unregister absent.
func TestUnregisterAbsent(t *testing.T) {
	r := newRuntime()
	defer r.Exit()

	e0 := side.NewEvent("e0", false)
	h, _ := r.RegisterEvents([]*side.EventDescription{e0})
	defer r.UnregisterEvents(h)

	cb1 := func(desc *side.EventDescription, payload any, priv any, callerPC uintptr) {}
	cb2 := func(desc *side.EventDescription, payload any, priv any, callerPC uintptr) {}

	require.NoError(t, r.RegisterCallback(e0, cb1, "p1", side.MatchAll))

	err := r.UnregisterCallback(e0, cb2, "p2", side.MatchAll)
	require.Error(t, err)
	assert.True(t, side.IsCode(err, side.NoEntry))

	require.NoError(t, r.UnregisterCallback(e0, cb1, "p1", side.MatchAll))
	assert.Equal(t, uint32(0), e0.State.NrCallbacks())
	assert.Empty(t, e0.State.Snapshot())
}

// Scenario 5: statedump polling.
func TestStatedumpPolling(t *testing.T) {
	r := newRuntime()
	defer r.Exit()

	mock := side.NewMockStatedump()
	h, err := r.StatedumpRequestNotificationRegister("app", mock.Callback(), side.Polling)
	require.NoError(t, err)
	defer r.StatedumpRequestNotificationUnregister(h)

	assert.True(t, r.StatedumpPollPending(h))

	n := r.StatedumpRunPending(h)
	assert.Equal(t, 1, n)
	assert.Equal(t, []uint64{side.MatchAll}, mock.Keys())

	assert.False(t, r.StatedumpPollPending(h))
}

// Scenario 6: statedump agent + request.
func TestStatedumpAgentRequest(t *testing.T) {
	r := newRuntime()
	defer r.Exit()

	mock := side.NewMockStatedump()
	h, err := r.StatedumpRequestNotificationRegister("agentapp", mock.Callback(), side.Agent)
	require.NoError(t, err)
	defer r.StatedumpRequestNotificationUnregister(h)

	require.Eventually(t, func() bool {
		return len(mock.Keys()) == 1
	}, time.Second, time.Millisecond, "initial MatchAll drain never arrived")

	key, err := r.RequestKey()
	require.NoError(t, err)
	assert.Equal(t, uint64(8), key)

	require.NoError(t, r.StatedumpRequest(key))

	require.Eventually(t, func() bool {
		keys := mock.Keys()
		return len(keys) == 2 && keys[1] == key
	}, time.Second, time.Millisecond, "agent-driven drain never arrived")
}

// A request that is cancelled before any drain runs produces no callback
// invocation for that key.
func TestRequestThenCancelSuppressesDrain(t *testing.T) {
	r := newRuntime()
	defer r.Exit()

	mock := side.NewMockStatedump()
	h, err := r.StatedumpRequestNotificationRegister("cancelapp", mock.Callback(), side.Polling)
	require.NoError(t, err)
	defer r.StatedumpRequestNotificationUnregister(h)

	// Drain the initial MatchAll notification first.
	r.StatedumpRunPending(h)
	mock.Reset()

	key, err := r.RequestKey()
	require.NoError(t, err)
	require.NoError(t, r.StatedumpRequest(key))
	require.NoError(t, r.StatedumpRequestCancel(key))

	n := r.StatedumpRunPending(h)
	assert.Equal(t, 0, n)
	assert.Empty(t, mock.Keys())
}
