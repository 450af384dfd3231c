package probe

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const onvifCapabilitiesEnvelope = `<?xml version="1.0" encoding="UTF-8"?>
<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope">
	<s:Body xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema">
		<GetCapabilities xmlns="http://www.onvif.org/ver10/device/wsdl">
		</GetCapabilities>
	</s:Body>
</s:Envelope>`

// ONVIFProbe issues a SOAP GetCapabilities request against the device
// service endpoint. Success is an HTTP 200 within the timeout; any
// transport error or other status collapses to false.
type ONVIFProbe struct {
	client *http.Client
}

func NewONVIFProbe(timeout time.Duration) *ONVIFProbe {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &ONVIFProbe{
		client: &http.Client{Timeout: timeout},
	}
}

func (p *ONVIFProbe) Check(ctx context.Context, host string, port int) (bool, error) {
	if host == "" {
		return false, ErrInvalidAddress
	}

	if port <= 0 || port > 65535 {
		return false, ErrInvalidPort
	}

	url := fmt.Sprintf("http://%s/onvif/device_service", net.JoinHostPort(host, strconv.Itoa(port)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(onvifCapabilitiesEnvelope))
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}

	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
	req.Header.Set("SOAPAction", "http://www.onvif.org/ver10/device/wsdl/GetCapabilities")

	resp, err := p.client.Do(req) //nolint:bodyclose // Response body is closed later
	if err != nil {
		return false, nil
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close response body")
		}
	}(resp.Body)

	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK, nil
}
