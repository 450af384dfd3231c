package probe

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/rs/zerolog/log"
)

const (
	// POWER-ETHERNET-MIB, PSE group 1.
	oidPsePortDetectionStatus  = ".1.3.6.1.2.1.105.1.1.1.6.1."
	oidMainPseConsumptionPower = ".1.3.6.1.2.1.105.1.3.1.1.4.1"

	pseStatusDeliveringPower = 3
)

// PoEResult is the outcome of one PoE uplink query.
type PoEResult struct {
	Link   bool
	PowerW float64
}

// PoEProbe queries a device's PoE uplink switch over SNMP for port
// power state and PSE consumption. SNMP transport failures are
// expected negatives and collapse to an empty result; only a
// non-numeric port reference is a configuration error.
type PoEProbe struct {
	community string
	timeout   time.Duration
}

func NewPoEProbe(community string, timeout time.Duration) *PoEProbe {
	if community == "" {
		community = "public"
	}

	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &PoEProbe{community: community, timeout: timeout}
}

// Check queries switchIP for the PoE state of the given port.
func (p *PoEProbe) Check(ctx context.Context, switchIP, port string) (*PoEResult, error) {
	if switchIP == "" {
		return nil, ErrInvalidAddress
	}

	portIndex, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("%w: PoE port %q: %w", ErrInvalidPort, port, err)
	}

	client := &gosnmp.GoSNMP{
		Target:    switchIP,
		Port:      161,
		Community: p.community,
		Version:   gosnmp.Version2c,
		Timeout:   p.timeout,
		Retries:   1,
		Context:   ctx,
	}

	if err := client.Connect(); err != nil {
		return &PoEResult{}, nil
	}
	defer func() {
		if err := client.Conn.Close(); err != nil {
			log.Warn().Err(err).Str("switch", switchIP).Msg("failed to close SNMP connection")
		}
	}()

	oids := []string{
		oidPsePortDetectionStatus + strconv.Itoa(portIndex),
		oidMainPseConsumptionPower,
	}

	packet, err := client.Get(oids)
	if err != nil {
		return &PoEResult{}, nil
	}

	result := &PoEResult{}

	for _, variable := range packet.Variables {
		switch variable.Name {
		case oids[0]:
			if status, ok := toInt(variable); ok {
				result.Link = status == pseStatusDeliveringPower
			}
		case oids[1]:
			if watts, ok := toInt(variable); ok {
				result.PowerW = float64(watts)
			}
		}
	}

	return result, nil
}

func toInt(variable gosnmp.SnmpPDU) (int, bool) {
	switch variable.Type {
	case gosnmp.Integer:
		v, ok := variable.Value.(int)
		return v, ok
	case gosnmp.Counter32, gosnmp.Gauge32:
		if v, ok := variable.Value.(uint); ok {
			return int(v), true
		}

		return 0, false
	default:
		return 0, false
	}
}
