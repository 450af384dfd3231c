package alerting

import (
	"fmt"
	"strings"

	"github.com/camtower/camtower/pkg/models"
)

// BuildMessage synthesizes the human-readable alert text:
// "LEVEL: brand model (mgmt_ip) at site [- reason] [(PoE: ip:port)]".
func BuildMessage(device *models.Device, check *models.CheckResult) string {
	site := device.SiteName
	if site == "" {
		site = "Unknown Site"
	}

	brand := device.Brand
	if brand == "" {
		brand = "Unknown"
	}

	deviceInfo := strings.TrimSpace(fmt.Sprintf("%s %s", brand, device.Model))

	var b strings.Builder

	fmt.Fprintf(&b, "%s: %s (%s) at %s",
		strings.ToUpper(string(check.State)), deviceInfo, device.MgmtIP, site)

	if check.Reason != "" {
		fmt.Fprintf(&b, " - %s", check.Reason)
	}

	if device.PoESwitchIP != "" && device.PoEPort != "" {
		fmt.Fprintf(&b, " (PoE: %s:%s)", device.PoESwitchIP, device.PoEPort)
	}

	return b.String()
}
