// Package scheduler fans health checks out across the device
// inventory on a fixed interval or cron expression.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/camtower/camtower/pkg/db"
	"github.com/camtower/camtower/pkg/models"
)

var ErrInvalidSchedule = errors.New("invalid cron schedule")

const (
	defaultInterval   = 5 * time.Minute
	defaultLaunchRate = 50 // device probes started per second
)

// DeviceProber runs one full check pass for a device.
type DeviceProber interface {
	ProbeDevice(ctx context.Context, device *models.Device)
}

// Config carries the scheduler settings. Schedule, when set, is a
// cron expression and takes precedence over Interval.
type Config struct {
	Interval   time.Duration
	Schedule   string
	LaunchRate int
}

// Scheduler triggers scan cycles and isolates per-device failures.
// Cycles may overlap when probing runs longer than the interval; a
// device whose previous probe is still in flight is skipped rather
// than probed twice concurrently.
type Scheduler struct {
	devices  db.DeviceStore
	prober   DeviceProber
	interval time.Duration
	schedule string
	limiter  *rate.Limiter

	mu       sync.Mutex
	inflight map[int64]struct{}

	cycles sync.WaitGroup
	done   chan struct{}
}

func New(cfg Config, devices db.DeviceStore, prober DeviceProber) (*Scheduler, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}

	if cfg.LaunchRate <= 0 {
		cfg.LaunchRate = defaultLaunchRate
	}

	if cfg.Schedule != "" && !gronx.New().IsValid(cfg.Schedule) {
		return nil, ErrInvalidSchedule
	}

	return &Scheduler{
		devices:  devices,
		prober:   prober,
		interval: cfg.Interval,
		schedule: cfg.Schedule,
		limiter:  rate.NewLimiter(rate.Limit(cfg.LaunchRate), cfg.LaunchRate),
		inflight: make(map[int64]struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start runs the scan loop until the context is canceled or Stop is
// called. An initial cycle runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().
		Dur("interval", s.interval).
		Str("schedule", s.schedule).
		Msg("starting scan scheduler")

	s.cycles.Add(1)
	s.runCycle(ctx)
	s.cycles.Done()

	if s.schedule != "" {
		return s.runCron(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-ticker.C:
			s.launchCycle(ctx)
		}
	}
}

func (s *Scheduler) runCron(ctx context.Context) error {
	for {
		next, err := gronx.NextTick(s.schedule, false)
		if err != nil {
			return err
		}

		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-s.done:
			timer.Stop()
			return nil
		case <-timer.C:
			s.launchCycle(ctx)
		}
	}
}

// launchCycle starts a cycle without waiting for it. A slow cycle
// therefore never delays the next tick; overlap is safe because a
// device with a probe still in flight is skipped.
func (s *Scheduler) launchCycle(ctx context.Context) {
	s.cycles.Add(1)

	go func() {
		defer s.cycles.Done()

		s.runCycle(ctx)
	}()
}

// Stop ends the scan loop and waits for in-flight cycles to finish.
// Probes complete on their own timeouts; they are not aborted
// mid-probe, so no partial check rows are written.
func (s *Scheduler) Stop() {
	close(s.done)
	s.cycles.Wait()
}

// runCycle loads an inventory snapshot and probes every device
// concurrently. A cycle-level failure is logged and the scheduler
// waits for the next tick.
func (s *Scheduler) runCycle(ctx context.Context) {
	start := time.Now()

	devices, err := s.devices.ListDevices()
	if err != nil {
		log.Error().Err(err).Msg("failed to load device inventory, skipping cycle")
		return
	}

	log.Info().Int("devices", len(devices)).Msg("starting health checks")

	var wg sync.WaitGroup

	for i := range devices {
		device := devices[i]

		if !s.tryAcquire(device.ID) {
			log.Warn().
				Str("device", device.MgmtIP).
				Msg("previous probe still in flight, skipping device")

			continue
		}

		if err := s.limiter.Wait(ctx); err != nil {
			s.release(device.ID)
			break
		}

		wg.Add(1)

		go func() {
			defer wg.Done()
			defer s.release(device.ID)

			s.prober.ProbeDevice(ctx, &device)
		}()
	}

	wg.Wait()

	log.Info().Dur("elapsed", time.Since(start)).Msg("health checks completed")
}

func (s *Scheduler) tryAcquire(deviceID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inflight[deviceID]; busy {
		return false
	}

	s.inflight[deviceID] = struct{}{}

	return true
}

func (s *Scheduler) release(deviceID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inflight, deviceID)
}
