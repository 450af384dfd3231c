package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/camtower/camtower/pkg/db"
	"github.com/camtower/camtower/pkg/models"
)

type fakeProber struct {
	mu     sync.Mutex
	probed map[int64]int
	block  chan struct{}
}

func newFakeProber() *fakeProber {
	return &fakeProber{probed: make(map[int64]int)}
}

func (f *fakeProber) ProbeDevice(_ context.Context, device *models.Device) {
	f.mu.Lock()
	f.probed[device.ID]++
	f.mu.Unlock()

	if f.block != nil {
		<-f.block
	}
}

func (f *fakeProber) count(deviceID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.probed[deviceID]
}

func inventory() []models.Device {
	return []models.Device{
		{ID: 1, MgmtIP: "10.0.0.1"},
		{ID: 2, MgmtIP: "10.0.0.2"},
		{ID: 3, MgmtIP: "10.0.0.3"},
	}
}

func TestNewRejectsBadSchedule(t *testing.T) {
	ctrl := gomock.NewController(t)

	_, err := New(Config{Schedule: "not a cron"}, db.NewMockDeviceStore(ctrl), newFakeProber())
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestNewAcceptsCronSchedule(t *testing.T) {
	ctrl := gomock.NewController(t)

	s, err := New(Config{Schedule: "*/5 * * * *"}, db.NewMockDeviceStore(ctrl), newFakeProber())
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestRunCycleProbesEveryDevice(t *testing.T) {
	ctrl := gomock.NewController(t)

	devices := db.NewMockDeviceStore(ctrl)
	devices.EXPECT().ListDevices().Return(inventory(), nil)

	prober := newFakeProber()

	s, err := New(Config{}, devices, prober)
	require.NoError(t, err)

	s.runCycle(context.Background())

	for _, d := range inventory() {
		assert.Equal(t, 1, prober.count(d.ID), "device %d", d.ID)
	}
}

func TestRunCycleSkipsInventoryFailure(t *testing.T) {
	ctrl := gomock.NewController(t)

	devices := db.NewMockDeviceStore(ctrl)
	devices.EXPECT().ListDevices().Return(nil, db.ErrFailedToQuery)

	prober := newFakeProber()

	s, err := New(Config{}, devices, prober)
	require.NoError(t, err)

	// A failed inventory load skips the cycle without probing.
	s.runCycle(context.Background())

	assert.Empty(t, prober.probed)
}

func TestRunCycleSkipsBusyDevice(t *testing.T) {
	ctrl := gomock.NewController(t)

	devices := db.NewMockDeviceStore(ctrl)
	devices.EXPECT().ListDevices().Return(inventory(), nil)

	prober := newFakeProber()

	s, err := New(Config{}, devices, prober)
	require.NoError(t, err)

	// Device 2 still has a probe in flight from a previous cycle.
	require.True(t, s.tryAcquire(2))

	s.runCycle(context.Background())

	assert.Equal(t, 1, prober.count(1))
	assert.Zero(t, prober.count(2))
	assert.Equal(t, 1, prober.count(3))

	// Releasing makes the device eligible again.
	s.release(2)
	devices.EXPECT().ListDevices().Return(inventory(), nil)
	s.runCycle(context.Background())

	assert.Equal(t, 1, prober.count(2))
}

func TestStartRunsInitialCycleAndTicks(t *testing.T) {
	ctrl := gomock.NewController(t)

	devices := db.NewMockDeviceStore(ctrl)
	devices.EXPECT().ListDevices().Return(inventory(), nil).MinTimes(2)

	prober := newFakeProber()

	s, err := New(Config{Interval: 25 * time.Millisecond}, devices, prober)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)

	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool {
		return prober.count(1) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	s.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestStopWaitsForInflightCycle(t *testing.T) {
	ctrl := gomock.NewController(t)

	devices := db.NewMockDeviceStore(ctrl)
	devices.EXPECT().ListDevices().Return(inventory()[:1], nil).AnyTimes()

	prober := newFakeProber()
	prober.block = make(chan struct{})

	s, err := New(Config{Interval: 10 * time.Millisecond}, devices, prober)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan error, 1)

	go func() { started <- s.Start(ctx) }()

	require.Eventually(t, func() bool {
		return prober.count(1) >= 1
	}, 2*time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})

	go func() {
		s.Stop()
		close(stopped)
	}()

	// Stop must not return while a probe is still running.
	select {
	case <-stopped:
		t.Fatal("Stop returned with a probe in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(prober.block)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after probes finished")
	}
}
