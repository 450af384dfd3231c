package probe

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPProbeOpenPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	port := ln.Addr().(*net.TCPAddr).Port

	probe := NewTCPProbe(time.Second)

	open, err := probe.Check(context.Background(), "127.0.0.1", port)
	require.NoError(t, err)
	assert.True(t, open)
}

func TestTCPProbeClosedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	probe := NewTCPProbe(time.Second)

	// Connection refused is a finding, not an error.
	open, err := probe.Check(context.Background(), "127.0.0.1", port)
	require.NoError(t, err)
	assert.False(t, open)
}

func TestTCPProbeInvalidInput(t *testing.T) {
	probe := NewTCPProbe(time.Second)

	tests := []struct {
		name    string
		host    string
		port    int
		wantErr error
	}{
		{"empty host", "", 80, ErrInvalidAddress},
		{"zero port", "127.0.0.1", 0, ErrInvalidPort},
		{"negative port", "127.0.0.1", -1, ErrInvalidPort},
		{"port too large", "127.0.0.1", 70000, ErrInvalidPort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			open, err := probe.Check(context.Background(), tt.host, tt.port)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, open)
		})
	}
}

func TestTCPProbeCanceledContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	port := ln.Addr().(*net.TCPAddr).Port

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	probe := NewTCPProbe(time.Second)

	open, err := probe.Check(ctx, "127.0.0.1", port)
	require.NoError(t, err)
	assert.False(t, open)
}
