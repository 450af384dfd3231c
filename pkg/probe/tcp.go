package probe

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// TCPProbe checks whether a TCP port accepts connections within a
// bounded wait. Expected network negatives (refusal, timeout, resets)
// are data, not errors; only malformed input is reported as an error.
type TCPProbe struct {
	timeout time.Duration
}

func NewTCPProbe(timeout time.Duration) *TCPProbe {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &TCPProbe{timeout: timeout}
}

// Check attempts one connection to host:port. No retry.
func (p *TCPProbe) Check(ctx context.Context, host string, port int) (bool, error) {
	if host == "" {
		return false, ErrInvalidAddress
	}

	if port <= 0 || port > 65535 {
		return false, ErrInvalidPort
	}

	connCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var d net.Dialer

	addr := net.JoinHostPort(host, strconv.Itoa(port))

	conn, err := d.DialContext(connCtx, "tcp", addr)
	if err != nil {
		return false, nil
	}

	if err := conn.Close(); err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("error closing connection")
	}

	return true, nil
}
