package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/camtower/camtower/pkg/db"
	"github.com/camtower/camtower/pkg/models"
)

type recordingSink struct {
	mu     sync.Mutex
	checks []*models.CheckResult
}

func (r *recordingSink) ProcessCheck(_ context.Context, _ *models.Device, check *models.CheckResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.checks = append(r.checks, check)
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.checks)
}

func TestProbeDeviceHealthy(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// One HTTP server stands in for every port so all four TCP checks
	// succeed and the ONVIF POST gets a 200.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	host, port := serverHostPort(t, srv)

	device := &models.Device{
		ID:        1,
		Type:      models.TypeIPCam,
		MgmtIP:    host,
		HTTPPort:  port,
		HTTPSPort: port,
		RTSPPort:  port,
		ONVIFPort: port,
	}

	var saved *models.CheckResult

	checks := db.NewMockCheckStore(ctrl)
	checks.EXPECT().SaveCheck(gomock.Any()).DoAndReturn(func(c *models.CheckResult) error {
		saved = c
		return nil
	})

	sink := &recordingSink{}
	prober := NewProber(Config{Timeout: time.Second}, checks, sink)

	prober.ProbeDevice(context.Background(), device)

	require.NotNil(t, saved)
	assert.Equal(t, device.ID, saved.DeviceID)
	assert.True(t, saved.RTSPOk)
	assert.True(t, saved.ONVIFOk)
	assert.Equal(t, 100, saved.Score)
	assert.Equal(t, models.StateGreen, saved.State)

	for _, role := range models.PortRoles {
		assert.True(t, saved.TCPOpen[role], "role %s", role)
	}

	require.Equal(t, 1, sink.count())
	assert.Same(t, saved, sink.checks[0])
}

func TestProbeDeviceUnreachable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	device := &models.Device{
		ID:        2,
		Type:      models.TypeIPCam,
		MgmtIP:    "127.0.0.1",
		HTTPPort:  port,
		HTTPSPort: port,
		RTSPPort:  port,
		ONVIFPort: port,
	}

	var saved *models.CheckResult

	checks := db.NewMockCheckStore(ctrl)
	checks.EXPECT().SaveCheck(gomock.Any()).DoAndReturn(func(c *models.CheckResult) error {
		saved = c
		return nil
	})

	sink := &recordingSink{}
	prober := NewProber(Config{Timeout: 500 * time.Millisecond}, checks, sink)

	prober.ProbeDevice(context.Background(), device)

	require.NotNil(t, saved)
	// All ports down on a camera stacks every penalty.
	assert.Equal(t, 20, saved.Score)
	assert.Equal(t, models.StateRed, saved.State)
	assert.False(t, saved.RTSPOk)
	assert.False(t, saved.ONVIFOk)
	assert.Equal(t, 1, sink.count())
}

func TestProbeDeviceStorageErrorSkipsSinks(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	device := &models.Device{
		ID:        3,
		Type:      models.TypeNVR,
		MgmtIP:    "127.0.0.1",
		HTTPPort:  port,
		HTTPSPort: port,
		RTSPPort:  port,
		ONVIFPort: port,
	}

	checks := db.NewMockCheckStore(ctrl)
	checks.EXPECT().SaveCheck(gomock.Any()).Return(db.ErrFailedToInsert)

	sink := &recordingSink{}
	prober := NewProber(Config{Timeout: 500 * time.Millisecond}, checks, sink)

	prober.ProbeDevice(context.Background(), device)

	assert.Zero(t, sink.count())
}
