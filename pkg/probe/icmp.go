package probe

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// ICMPProbe measures echo packet loss toward a device. The raw ICMP
// listener needs CAP_NET_RAW; when it cannot be opened the probe
// reports ok=false and the prober records no loss figure. Loss is
// informational only and never feeds the health score.
type ICMPProbe struct {
	timeout time.Duration
	count   int
}

func NewICMPProbe(timeout time.Duration, count int) *ICMPProbe {
	if count <= 0 {
		count = 3
	}

	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &ICMPProbe{timeout: timeout, count: count}
}

// Loss sends count echo requests to host and returns the measured
// packet loss percentage.
func (p *ICMPProbe) Loss(ctx context.Context, host string) (loss float64, ok bool) {
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil {
		return 0, false
	}

	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		log.Debug().Err(err).Msg("ICMP listener unavailable, skipping loss probe")
		return 0, false
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close ICMP listener")
		}
	}()

	id := os.Getpid() & 0xffff

	for seq := 0; seq < p.count; seq++ {
		msg := icmp.Message{
			Type: ipv4.ICMPTypeEcho,
			Body: &icmp.Echo{
				ID:   id,
				Seq:  seq,
				Data: []byte("camtower"),
			},
		}

		wb, err := msg.Marshal(nil)
		if err != nil {
			return 0, false
		}

		if _, err := conn.WriteTo(wb, &net.IPAddr{IP: ip}); err != nil {
			log.Debug().Err(err).Str("host", host).Msg("error sending ping")
		}
	}

	received := p.collectReplies(ctx, conn, ip, id)

	return float64(p.count-received) / float64(p.count) * 100, true
}

func (p *ICMPProbe) collectReplies(ctx context.Context, conn *icmp.PacketConn, ip net.IP, id int) int {
	deadline := time.Now().Add(p.timeout)
	packet := make([]byte, 1500)
	received := 0

	for received < p.count && time.Now().Before(deadline) {
		if ctx.Err() != nil {
			break
		}

		if err := conn.SetReadDeadline(deadline); err != nil {
			break
		}

		n, peer, err := conn.ReadFrom(packet)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				break
			}

			continue
		}

		if peer.String() != ip.String() {
			continue
		}

		msg, err := icmp.ParseMessage(1, packet[:n])
		if err != nil {
			continue
		}

		if msg.Type != ipv4.ICMPTypeEchoReply {
			continue
		}

		if echo, ok := msg.Body.(*icmp.Echo); ok && echo.ID == id {
			received++
		}
	}

	return received
}
