package probe

import (
	"context"
	"time"
)

// RTSPProbe verifies RTSP availability. It currently degrades to TCP
// reachability of the RTSP port; a protocol-level OPTIONS handshake is
// an extension point, so callers should read a positive result as
// "reachable", not "verified streaming".
type RTSPProbe struct {
	tcp *TCPProbe
}

func NewRTSPProbe(timeout time.Duration) *RTSPProbe {
	return &RTSPProbe{tcp: NewTCPProbe(timeout)}
}

func (p *RTSPProbe) Check(ctx context.Context, host string, port int) (bool, error) {
	return p.tcp.Check(ctx, host, port)
}
