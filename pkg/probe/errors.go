// Package probe implements the per-device health checks: TCP
// reachability, RTSP and ONVIF availability, ICMP loss and the PoE
// uplink query, plus the evaluator that turns raw outcomes into a
// scored, classified check result.
package probe

import "errors"

var (
	ErrInvalidAddress = errors.New("invalid probe address")
	ErrInvalidPort    = errors.New("invalid probe port")
)
