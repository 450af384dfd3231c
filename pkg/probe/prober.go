package probe

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/camtower/camtower/pkg/db"
	"github.com/camtower/camtower/pkg/models"
)

// CheckSink consumes a finished, persisted check. The alert engine is
// the primary sink; additional sinks (live dashboard feeds) can be
// chained behind it.
type CheckSink interface {
	ProcessCheck(ctx context.Context, device *models.Device, check *models.CheckResult)
}

// Config carries the probe-layer settings.
type Config struct {
	Timeout       time.Duration
	ICMPCount     int
	SNMPCommunity string
}

// Prober runs every probe for one device concurrently, evaluates the
// outcomes, persists the snapshot and hands it to the sinks. One
// probe's failure never aborts the others; only a storage error skips
// the device for the cycle.
type Prober struct {
	tcp    *TCPProbe
	rtsp   *RTSPProbe
	onvif  *ONVIFProbe
	icmp   *ICMPProbe
	poe    *PoEProbe
	checks db.CheckStore
	sinks  []CheckSink
	now    func() time.Time
}

func NewProber(cfg Config, checks db.CheckStore, sinks ...CheckSink) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	return &Prober{
		tcp:    NewTCPProbe(cfg.Timeout),
		rtsp:   NewRTSPProbe(cfg.Timeout),
		onvif:  NewONVIFProbe(cfg.Timeout),
		icmp:   NewICMPProbe(cfg.Timeout, cfg.ICMPCount),
		poe:    NewPoEProbe(cfg.SNMPCommunity, cfg.Timeout),
		checks: checks,
		sinks:  sinks,
		now:    time.Now,
	}
}

// ProbeDevice runs one full health check pass for a device.
func (p *Prober) ProbeDevice(ctx context.Context, device *models.Device) {
	check := &models.CheckResult{
		DeviceID:  device.ID,
		Timestamp: p.now(),
		TCPOpen:   make(map[models.PortRole]bool, len(models.PortRoles)),
	}

	p.runProbes(ctx, device, check)

	Evaluate(device, check)

	if err := p.checks.SaveCheck(check); err != nil {
		log.Error().Err(err).
			Str("device", device.MgmtIP).
			Msg("failed to save check, skipping device this cycle")

		return
	}

	for _, sink := range p.sinks {
		sink.ProcessCheck(ctx, device, check)
	}

	log.Debug().
		Str("device", device.MgmtIP).
		Str("state", string(check.State)).
		Int("score", check.Score).
		Msg("health check completed")
}

// runProbes fills the raw fields of check. The four TCP checks, the
// ICMP loss probe and the PoE query all run in parallel; RTSP and
// ONVIF run afterwards, gated on their TCP port being open.
func (p *Prober) runProbes(ctx context.Context, device *models.Device, check *models.CheckResult) {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, role := range models.PortRoles {
		wg.Add(1)

		go func(role models.PortRole) {
			defer wg.Done()

			open, err := p.tcp.Check(ctx, device.MgmtIP, device.Port(role))
			if err != nil {
				log.Error().Err(err).
					Str("device", device.MgmtIP).
					Str("role", string(role)).
					Msg("TCP probe misconfigured")
			}

			mu.Lock()
			check.TCPOpen[role] = open
			mu.Unlock()
		}(role)
	}

	wg.Add(1)

	go func() {
		defer wg.Done()

		loss, ok := p.icmp.Loss(ctx, device.MgmtIP)

		if ok {
			mu.Lock()
			check.ICMPLoss = loss
			mu.Unlock()
		}
	}()

	if device.PoESwitchIP != "" && device.PoEPort != "" {
		wg.Add(1)

		go func() {
			defer wg.Done()

			result, err := p.poe.Check(ctx, device.PoESwitchIP, device.PoEPort)
			if err != nil {
				log.Error().Err(err).
					Str("device", device.MgmtIP).
					Str("switch", device.PoESwitchIP).
					Msg("PoE probe misconfigured")

				return
			}

			mu.Lock()
			check.PoELink = result.Link
			check.PoEPowerW = result.PowerW
			mu.Unlock()
		}()
	}

	wg.Wait()

	// Application-level checks are gated on their transport port.
	if check.TCPOpen[models.RoleRTSP] {
		ok, err := p.rtsp.Check(ctx, device.MgmtIP, device.RTSPPort)
		if err != nil {
			log.Error().Err(err).Str("device", device.MgmtIP).Msg("RTSP probe misconfigured")
		}

		check.RTSPOk = ok
	}

	if check.TCPOpen[models.RoleONVIF] {
		ok, err := p.onvif.Check(ctx, device.MgmtIP, device.ONVIFPort)
		if err != nil {
			log.Error().Err(err).Str("device", device.MgmtIP).Msg("ONVIF probe misconfigured")
		}

		check.ONVIFOk = ok
	}
}
