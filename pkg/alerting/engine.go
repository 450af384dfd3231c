// Package alerting owns the alert lifecycle: creation, escalation
// bookkeeping, time-windowed suppression of repeat notifications, and
// resolution on recovery.
package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/camtower/camtower/pkg/db"
	"github.com/camtower/camtower/pkg/models"
	"github.com/camtower/camtower/pkg/notify"
)

const defaultSuppressionWindow = 10 * time.Minute

// Engine drives the per-device alert state machine from incoming
// check results. State transitions for one device are serialized
// behind a keyed mutex so overlapping scan cycles cannot race on the
// same alert rows; the store's partial unique index backs the same
// invariant at the persistence layer.
type Engine struct {
	alerts db.AlertStore
	sink   notify.Sink
	window time.Duration

	mu    sync.Mutex
	locks map[int64]*sync.Mutex

	now func() time.Time
}

func NewEngine(alerts db.AlertStore, sink notify.Sink, window time.Duration) *Engine {
	if window <= 0 {
		window = defaultSuppressionWindow
	}

	return &Engine{
		alerts: alerts,
		sink:   sink,
		window: window,
		locks:  make(map[int64]*sync.Mutex),
		now:    time.Now,
	}
}

func (e *Engine) deviceLock(deviceID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.locks[deviceID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[deviceID] = l
	}

	return l
}

// ProcessCheck applies one check result to the device's alert state.
// Store and notification failures are absorbed and logged; nothing
// propagates to the prober.
func (e *Engine) ProcessCheck(ctx context.Context, device *models.Device, check *models.CheckResult) {
	l := e.deviceLock(device.ID)
	l.Lock()
	defer l.Unlock()

	if check.State == models.StateGreen {
		e.resolve(device)
		return
	}

	existing, err := e.alerts.FindUnresolved(device.ID, check.State)
	if err != nil {
		log.Error().Err(err).Str("device", device.MgmtIP).Msg("failed to look up alert")
		return
	}

	if existing == nil {
		e.create(ctx, device, check)
		return
	}

	e.update(ctx, device, existing)
}

// resolve clears every unresolved alert for the device, any level.
// Resolving when none exist is a no-op; recovery itself is not
// notified.
func (e *Engine) resolve(device *models.Device) {
	n, err := e.alerts.ResolveAll(device.ID)
	if err != nil {
		log.Error().Err(err).Str("device", device.MgmtIP).Msg("failed to resolve alerts")
		return
	}

	if n > 0 {
		log.Info().
			Int64("resolved", n).
			Str("device", device.MgmtIP).
			Msg("device recovered, alerts resolved")
	}
}

func (e *Engine) create(ctx context.Context, device *models.Device, check *models.CheckResult) {
	now := e.now()
	alert := &models.Alert{
		DeviceID:  device.ID,
		Level:     check.State,
		Message:   BuildMessage(device, check),
		FirstSeen: now,
		LastSeen:  now,
		Count:     1,
	}

	if _, err := e.alerts.CreateAlert(alert); err != nil {
		log.Error().Err(err).Str("device", device.MgmtIP).Msg("failed to create alert")
		return
	}

	// New alerts always notify; suppression only applies to repeats.
	e.dispatch(ctx, device, alert)

	log.Info().
		Str("level", string(alert.Level)).
		Str("device", device.MgmtIP).
		Msg("created alert")
}

func (e *Engine) update(ctx context.Context, device *models.Device, existing *models.Alert) {
	now := e.now()
	sinceLast := now.Sub(existing.LastSeen)

	if err := e.alerts.TouchAlert(existing.ID, now); err != nil {
		log.Error().Err(err).Str("device", device.MgmtIP).Msg("failed to update alert")
		return
	}

	existing.Count++
	existing.LastSeen = now

	// Within the window repeats are recorded but silent.
	if sinceLast > e.window {
		e.dispatch(ctx, device, existing)
	}
}

// dispatch is best-effort: the state transition already happened and a
// delivery failure never rolls it back.
func (e *Engine) dispatch(ctx context.Context, device *models.Device, alert *models.Alert) {
	if err := e.sink.SendAlert(ctx, device, alert); err != nil {
		log.Error().Err(err).
			Str("device", device.MgmtIP).
			Str("level", string(alert.Level)).
			Msg("failed to send alert notification")
	}
}
