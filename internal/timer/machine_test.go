package timer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMachine(t *testing.T) (*Machine, *fakeStore, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	store := newFakeStore(clock.Now)
	m, err := NewMachine(store, testSession, WithClock(clock.Now))
	require.NoError(t, err)
	return m, store, clock
}

func TestNewMachine_RequiresSession(t *testing.T) {
	_, err := NewMachine(newFakeStore(time.Now), Session{UserID: "u1", TeamID: "t1"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestStart_CreatesRunningEntry(t *testing.T) {
	m, store, clock := newTestMachine(t)
	ctx := context.Background()

	e, err := m.Start(ctx, "w1", "l1")
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "u1", e.UserID)
	assert.Equal(t, "t1", e.TeamID)
	assert.Equal(t, "w1", e.WorkTypeID)
	assert.Equal(t, "l1", e.LocationID)
	assert.True(t, e.IsRunning)
	assert.Equal(t, clock.Now(), e.StartTime)
	assert.Equal(t, int64(0), e.PausedTime)
	assert.Equal(t, int64(0), e.Duration)
	assert.Equal(t, StatusPending, e.Status)
	assert.Nil(t, e.EndTime)
	assert.Equal(t, "dev-a", e.DeviceID)
	assert.Equal(t, StateRunning, m.State())

	stored, _ := store.GetEntry(ctx, e.ID)
	require.NotNil(t, stored)
	assert.True(t, stored.IsRunning)
}

func TestStart_RejectsEmptyIdentifiers(t *testing.T) {
	m, _, _ := newTestMachine(t)
	_, err := m.Start(context.Background(), "", "l1")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = m.Start(context.Background(), "w1", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, StateIdle, m.State())
}

func TestStart_ConflictingActiveTimer(t *testing.T) {
	m, store, clock := newTestMachine(t)
	ctx := context.Background()

	_, err := m.Start(ctx, "w1", "l1")
	require.NoError(t, err)
	_, err = m.Start(ctx, "w2", "l2")
	assert.ErrorIs(t, err, ErrConflictingActiveTimer)

	// A second device with an empty local state still sees the stored timer.
	other, err := NewMachine(store, Session{UserID: "u1", TeamID: "t1", DeviceID: "dev-b"}, WithClock(clock.Now))
	require.NoError(t, err)
	_, err = other.Start(ctx, "w2", "l2")
	assert.ErrorIs(t, err, ErrConflictingActiveTimer)

	// A paused timer also blocks.
	_, err = m.Pause(ctx)
	require.NoError(t, err)
	_, err = other.Start(ctx, "w2", "l2")
	assert.ErrorIs(t, err, ErrConflictingActiveTimer)
}

func TestStart_OtherTeamDoesNotConflict(t *testing.T) {
	m, store, clock := newTestMachine(t)
	ctx := context.Background()
	_, err := m.Start(ctx, "w1", "l1")
	require.NoError(t, err)

	other, err := NewMachine(store, Session{UserID: "u1", TeamID: "t2", DeviceID: "dev-a"}, WithClock(clock.Now))
	require.NoError(t, err)
	_, err = other.Start(ctx, "w1", "l1")
	assert.NoError(t, err)
}

func TestPauseResumeStop_Scenario(t *testing.T) {
	m, store, clock := newTestMachine(t)
	ctx := context.Background()
	t0 := clock.Now()

	e, err := m.Start(ctx, "w1", "l1")
	require.NoError(t, err)

	clock.Advance(100 * time.Second)
	paused, err := m.Pause(ctx)
	require.NoError(t, err)
	assert.False(t, paused.IsRunning)
	require.NotNil(t, paused.LastPauseTime)
	assert.Equal(t, t0.Add(100*time.Second), *paused.LastPauseTime)
	assert.Equal(t, StatePaused, m.State())

	clock.Advance(300 * time.Second)
	resumed, err := m.Resume(ctx)
	require.NoError(t, err)
	assert.True(t, resumed.IsRunning)
	assert.Nil(t, resumed.LastPauseTime)
	assert.Equal(t, int64(300), resumed.PausedTime)

	clock.Advance(300 * time.Second)
	stopped, err := m.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(300), stopped.PausedTime)
	assert.Equal(t, int64(400), stopped.Duration)
	require.NotNil(t, stopped.EndTime)
	assert.Equal(t, t0.Add(700*time.Second), *stopped.EndTime)
	assert.False(t, stopped.IsRunning)
	assert.Equal(t, StatusPending, stopped.Status)
	assert.Equal(t, StateStopped, m.State())

	stored, _ := store.GetEntry(ctx, e.ID)
	assert.Equal(t, int64(400), stored.Duration)
	assert.Equal(t, ElapsedSeconds(*stored.EndTime, stored.StartTime)-stored.PausedTime, stored.Duration)
}

func TestStop_WhilePausedFoldsOpenPause(t *testing.T) {
	m, _, clock := newTestMachine(t)
	ctx := context.Background()

	_, err := m.Start(ctx, "w1", "l1")
	require.NoError(t, err)
	clock.Advance(60 * time.Second)
	_, err = m.Pause(ctx)
	require.NoError(t, err)
	clock.Advance(240 * time.Second)

	stopped, err := m.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(240), stopped.PausedTime)
	assert.Equal(t, int64(60), stopped.Duration)
	assert.Nil(t, stopped.LastPauseTime)
}

func TestPausedTime_SumOfIntervals(t *testing.T) {
	m, _, clock := newTestMachine(t)
	ctx := context.Background()

	_, err := m.Start(ctx, "w1", "l1")
	require.NoError(t, err)

	intervals := []time.Duration{5 * time.Second, 90 * time.Second, 1 * time.Second, 3600 * time.Second}
	var want int64
	for _, d := range intervals {
		clock.Advance(10 * time.Second)
		_, err := m.Pause(ctx)
		require.NoError(t, err)
		clock.Advance(d)
		_, err = m.Resume(ctx)
		require.NoError(t, err)
		want += int64(d / time.Second)
	}
	clock.Advance(10 * time.Second)
	stopped, err := m.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, stopped.PausedTime)
	assert.Equal(t, int64(50), stopped.Duration)
}

func TestInvalidTransitions(t *testing.T) {
	m, _, _ := newTestMachine(t)
	ctx := context.Background()

	_, err := m.Pause(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = m.Resume(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = m.Stop(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, m.Cancel(ctx), ErrInvalidTransition)
	_, err = m.Postpone(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = m.Start(ctx, "w1", "l1")
	require.NoError(t, err)
	_, err = m.Resume(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition, "resume while running")

	_, err = m.Pause(ctx)
	require.NoError(t, err)
	_, err = m.Pause(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition, "pause while paused")

	_, err = m.Stop(ctx)
	require.NoError(t, err)
	_, err = m.Stop(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition, "stop while stopped")
	assert.ErrorIs(t, m.Cancel(ctx), ErrInvalidTransition, "cancel after stop")
}

func TestPersistenceFailure_LeavesStateUnchanged(t *testing.T) {
	m, store, clock := newTestMachine(t)
	ctx := context.Background()
	boom := errors.New("network down")

	store.failCreate = boom
	_, err := m.Start(ctx, "w1", "l1")
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateIdle, m.State())
	store.failCreate = nil

	_, err = m.Start(ctx, "w1", "l1")
	require.NoError(t, err)
	before := m.Current()

	clock.Advance(time.Minute)
	store.failUpdate = boom
	_, err = m.Pause(ctx)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, StateRunning, m.State())
	assert.Equal(t, before, m.Current())

	_, err = m.Stop(ctx)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, StateRunning, m.State())
	assert.Nil(t, m.Current().EndTime)

	store.failDelete = boom
	assert.ErrorIs(t, m.Cancel(ctx), ErrPersistence)
	assert.Equal(t, StateRunning, m.State())

	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "stop entry", pe.Op)
}

func TestCancel_DeletesEntry(t *testing.T) {
	m, store, clock := newTestMachine(t)
	ctx := context.Background()

	e, err := m.Start(ctx, "w1", "l1")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = m.Pause(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Cancel(ctx))
	assert.Equal(t, StateIdle, m.State())
	assert.Nil(t, m.Current())

	got, err := store.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPostpone(t *testing.T) {
	m, store, clock := newTestMachine(t)
	ctx := context.Background()

	e, err := m.Start(ctx, "w1", "l1")
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)

	parked, err := m.Postpone(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, parked.Status)
	assert.Equal(t, int64(1800), parked.Duration)
	assert.Equal(t, StateIdle, m.State())

	stored, _ := store.GetEntry(ctx, e.ID)
	assert.Equal(t, StatusPending, stored.Status)
	assert.NotNil(t, stored.EndTime)
	assert.Nil(t, stored.WorkAmount)

	// Postponing after an explicit stop just returns to idle.
	_, err = m.Start(ctx, "w1", "l1")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = m.Stop(ctx)
	require.NoError(t, err)
	updates := store.updates
	_, err = m.Postpone(ctx)
	require.NoError(t, err)
	assert.Equal(t, updates, store.updates, "already pending entries are not rewritten")
	assert.Equal(t, StateIdle, m.State())
}

func TestRecordWorkAmount(t *testing.T) {
	m, store, clock := newTestMachine(t)
	ctx := context.Background()

	e, err := m.Start(ctx, "w1", "l1")
	require.NoError(t, err)

	_, err = m.RecordWorkAmount(ctx, e.ID, 5)
	assert.ErrorIs(t, err, ErrInvalidTransition, "open entries cannot be completed")

	clock.Advance(time.Hour)
	_, err = m.Stop(ctx)
	require.NoError(t, err)

	_, err = m.RecordWorkAmount(ctx, e.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = m.RecordWorkAmount(ctx, e.ID, -3)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, StateStopped, m.State())

	done, err := m.RecordWorkAmount(ctx, e.ID, 12.5)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	require.NotNil(t, done.WorkAmount)
	assert.Equal(t, 12.5, *done.WorkAmount)
	assert.Equal(t, StateIdle, m.State())

	stored, _ := store.GetEntry(ctx, e.ID)
	assert.Equal(t, StatusCompleted, stored.Status)

	_, err = m.RecordWorkAmount(ctx, e.ID, 3)
	assert.ErrorIs(t, err, ErrInvalidTransition, "completed entries reject a second amount")

	_, err = m.RecordWorkAmount(ctx, "missing", 3)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestElapsed(t *testing.T) {
	m, _, clock := newTestMachine(t)
	ctx := context.Background()

	assert.Equal(t, int64(0), m.Elapsed(clock.Now()))

	_, err := m.Start(ctx, "w1", "l1")
	require.NoError(t, err)
	clock.Advance(100 * time.Second)
	assert.Equal(t, int64(100), m.Elapsed(clock.Now()))

	_, err = m.Pause(ctx)
	require.NoError(t, err)
	clock.Advance(time.Hour)
	assert.Equal(t, int64(100), m.Elapsed(clock.Now()), "paused elapsed is frozen")

	_, err = m.Resume(ctx)
	require.NoError(t, err)
	clock.Advance(20 * time.Second)
	assert.Equal(t, int64(120), m.Elapsed(clock.Now()))
}

func TestObserver(t *testing.T) {
	clock := newFakeClock()
	store := newFakeStore(clock.Now)
	obs := &recordingObserver{}
	m, err := NewMachine(store, testSession, WithClock(clock.Now), WithObserver(obs))
	require.NoError(t, err)
	ctx := context.Background()

	_, _ = m.Start(ctx, "w1", "l1")
	_, _ = m.Resume(ctx)
	_, _ = m.Stop(ctx)

	assert.Equal(t, []string{"start", "resume", "stop"}, obs.transitions)
	assert.Equal(t, 1, obs.failures)
}

func TestCurrent_ReturnsCopy(t *testing.T) {
	m, _, _ := newTestMachine(t)
	_, err := m.Start(context.Background(), "w1", "l1")
	require.NoError(t, err)

	c := m.Current()
	c.IsRunning = false
	c.WorkTypeID = "tampered"
	assert.True(t, m.Current().IsRunning)
	assert.Equal(t, "w1", m.Current().WorkTypeID)
}
