package control

import (
	"github.com/muurk/wemolink/internal/discovery"
	"github.com/muurk/wemolink/internal/insight"
)

const (
	// InsightService is the service-type URN for power telemetry.
	InsightService = "urn:Belkin:service:insight:1"

	// insightMarker selects the telemetry endpoint from a device's
	// advertised service list.
	insightMarker = "insight"
)

// InsightClient reads power telemetry from an Insight device. It shares the
// control client's retrying executor.
type InsightClient struct {
	*Client
}

// NewInsightClient returns a telemetry client for a discovered device.
func NewInsightClient(device *discovery.Device) *InsightClient {
	return &InsightClient{Client: NewClient(device)}
}

// GetTelemetry fetches and decodes the device's current telemetry record.
func (c *InsightClient) GetTelemetry() (insight.Record, error) {
	urlStr := c.controlURL(insightMarker, "/upnp/control/insight1")
	el, err := c.invoke("GetInsightParams", InsightService, urlStr, "")
	if err != nil {
		return insight.Record{}, err
	}
	return insight.Decode(el.TextOf("InsightParams")), nil
}

// GetPowerSummary fetches telemetry and derives the display-oriented
// summary.
func (c *InsightClient) GetPowerSummary() (insight.Summary, error) {
	rec, err := c.GetTelemetry()
	if err != nil {
		return insight.Summary{}, err
	}
	return rec.Summary(), nil
}
