package probe

import (
	"strings"

	"github.com/camtower/camtower/pkg/models"
)

// Penalty values applied by Evaluate, in application order.
const (
	penaltyAllPortsDown  = 50
	penaltySomePortsDown = 20
	penaltyRTSPDown      = 20
	penaltyONVIFDown     = 10

	// Open-port ratio below which the partial-reachability penalty
	// applies.
	portRatioThreshold = 0.7

	greenThreshold  = 80
	yellowThreshold = 60
)

// Evaluate derives score, state and reason from the raw probe fields
// of a check. It is deterministic: penalties apply in a fixed order so
// the reason text is reproducible, and the score is never clamped, so
// stacked penalties can push it below zero.
func Evaluate(device *models.Device, check *models.CheckResult) {
	score := 100

	var reasons []string

	openPorts := 0
	for _, open := range check.TCPOpen {
		if open {
			openPorts++
		}
	}

	totalPorts := len(check.TCPOpen)

	if openPorts == 0 {
		score -= penaltyAllPortsDown

		reasons = append(reasons, "All ports unreachable")
	} else if float64(openPorts) < portRatioThreshold*float64(totalPorts) {
		score -= penaltySomePortsDown

		reasons = append(reasons, "Some ports unreachable")
	}

	if device.Type == models.TypeIPCam && !check.RTSPOk {
		score -= penaltyRTSPDown

		reasons = append(reasons, "RTSP service unavailable")
	}

	if !check.ONVIFOk {
		score -= penaltyONVIFDown

		reasons = append(reasons, "ONVIF service unavailable")
	}

	check.Score = score
	check.State = Classify(score)
	check.Reason = strings.Join(reasons, ", ")
}

// Classify maps a score onto the tri-state health bucket.
func Classify(score int) models.HealthState {
	switch {
	case score >= greenThreshold:
		return models.StateGreen
	case score >= yellowThreshold:
		return models.StateYellow
	default:
		return models.StateRed
	}
}
