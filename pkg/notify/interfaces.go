// Package notify delivers alert notifications downstream. Delivery is
// best-effort: a failed send is logged by the caller and never rolls
// back the alert state transition that triggered it.
package notify

//go:generate mockgen -destination=mock_notify.go -package=notify github.com/camtower/camtower/pkg/notify Sink

import (
	"context"

	"github.com/camtower/camtower/pkg/models"
)

// Sink is the notification collaborator the alert engine talks to.
type Sink interface {
	SendAlert(ctx context.Context, device *models.Device, alert *models.Alert) error
}
