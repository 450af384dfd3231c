package notify

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/camtower/camtower/pkg/models"
)

// LogSink writes alert notifications to the log. It is the default
// sink when no webhook is configured.
type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (*LogSink) SendAlert(_ context.Context, device *models.Device, alert *models.Alert) error {
	log.Warn().
		Str("level", string(alert.Level)).
		Str("device", device.MgmtIP).
		Int("count", alert.Count).
		Msg(alert.Message)

	return nil
}
