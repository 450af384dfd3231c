// Package models holds the shared domain types for camtower.
package models

import "time"

// DeviceType identifies the kind of surveillance endpoint.
type DeviceType string

const (
	TypeIPCam  DeviceType = "ipcam"
	TypeNVR    DeviceType = "nvr"
	TypeSwitch DeviceType = "switch"
)

// HealthState is the tri-state classification derived from a check score.
type HealthState string

const (
	StateGreen  HealthState = "green"
	StateYellow HealthState = "yellow"
	StateRed    HealthState = "red"
)

// PortRole names one of the TCP ports checked on every device. The set
// is closed; per-port results are keyed by role, not by port number.
type PortRole string

const (
	RoleHTTP  PortRole = "http"
	RoleHTTPS PortRole = "https"
	RoleRTSP  PortRole = "rtsp"
	RoleONVIF PortRole = "onvif"
)

// PortRoles lists the checked roles in a fixed order.
var PortRoles = []PortRole{RoleHTTP, RoleHTTPS, RoleRTSP, RoleONVIF}

// Device is a monitored endpoint. It is owned by the inventory; the
// probing core only reads it.
type Device struct {
	ID          int64      `json:"id"`
	SiteID      int64      `json:"site_id,omitempty"`
	SiteName    string     `json:"site_name,omitempty"`
	Type        DeviceType `json:"type"`
	Brand       string     `json:"brand,omitempty"`
	Model       string     `json:"model,omitempty"`
	FWVersion   string     `json:"fw_version,omitempty"`
	MgmtIP      string     `json:"mgmt_ip"`
	VLAN        string     `json:"vlan,omitempty"`
	HTTPPort    int        `json:"http_port"`
	HTTPSPort   int        `json:"https_port"`
	RTSPPort    int        `json:"rtsp_port"`
	ONVIFPort   int        `json:"onvif_port"`
	Notes       string     `json:"notes,omitempty"`
	PoESwitchIP string     `json:"poe_switch_ip,omitempty"`
	PoEPort     string     `json:"poe_port,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Port returns the configured port for a role.
func (d *Device) Port(role PortRole) int {
	switch role {
	case RoleHTTP:
		return d.HTTPPort
	case RoleHTTPS:
		return d.HTTPSPort
	case RoleRTSP:
		return d.RTSPPort
	case RoleONVIF:
		return d.ONVIFPort
	default:
		return 0
	}
}

// CheckResult is one immutable health snapshot for a device. Rows are
// append-only; the core never mutates or deletes them.
type CheckResult struct {
	ID        int64             `json:"id"`
	DeviceID  int64             `json:"device_id"`
	Timestamp time.Time         `json:"ts"`
	TCPOpen   map[PortRole]bool `json:"tcp_open"`
	RTSPOk    bool              `json:"rtsp_ok"`
	ONVIFOk   bool              `json:"onvif_ok"`
	ICMPLoss  float64           `json:"icmp_loss"`
	PoELink   bool              `json:"poe_link"`
	PoEPowerW float64           `json:"poe_power_w"`
	Score     int               `json:"score"`
	State     HealthState       `json:"state"`
	Reason    string            `json:"reason"`
}

// Alert tracks a device remaining in a non-green state. At most one
// unresolved alert may exist per (device, level) pair.
type Alert struct {
	ID        int64       `json:"id"`
	DeviceID  int64       `json:"device_id"`
	Level     HealthState `json:"level"`
	Message   string      `json:"message"`
	FirstSeen time.Time   `json:"first_seen"`
	LastSeen  time.Time   `json:"last_seen"`
	Count     int         `json:"count"`
	Resolved  bool        `json:"resolved"`
}
