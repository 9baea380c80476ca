package discovery

import (
	"fmt"
	"strings"
	"time"
)

// DeviceType classifies a WeMo appliance by what it can do.
type DeviceType int

const (
	TypeUnknown DeviceType = iota
	TypeSwitch
	TypeInsight
	TypeLightSwitch
	TypeDimmer
	TypeMini
	TypeBulb
	TypeMotion
)

// String returns a human-readable name for the device type.
func (t DeviceType) String() string {
	switch t {
	case TypeSwitch:
		return "Switch"
	case TypeInsight:
		return "Insight"
	case TypeLightSwitch:
		return "LightSwitch"
	case TypeDimmer:
		return "Dimmer"
	case TypeMini:
		return "Mini"
	case TypeBulb:
		return "Bulb"
	case TypeMotion:
		return "Motion"
	case TypeUnknown:
		return "Unknown"
	default:
		return fmt.Sprintf("DeviceType(%d)", int(t))
	}
}

// Classify maps a raw deviceType URN and model name to a DeviceType using
// ordered substring rules. The URN rules run before the model rules because
// some models reuse generic "Socket" URNs.
func Classify(deviceTypeURN, modelName string) DeviceType {
	urn := strings.ToLower(deviceTypeURN)
	model := strings.ToLower(modelName)

	switch {
	case strings.Contains(urn, "insight"):
		return TypeInsight
	case strings.Contains(urn, "lightswitch"):
		return TypeLightSwitch
	case strings.Contains(urn, "dimmer"):
		return TypeDimmer
	case strings.Contains(urn, "sensor"), strings.Contains(urn, "motion"):
		return TypeMotion
	case strings.Contains(urn, "bridge"):
		return TypeBulb
	case strings.Contains(model, "mini"), strings.Contains(model, "wss"):
		return TypeMini
	case strings.Contains(urn, "controllee"), strings.Contains(urn, "socket"):
		return TypeSwitch
	default:
		return TypeUnknown
	}
}

// ServiceEndpoint describes one service advertised in a device description
// document. Paths are relative to the device's base URL.
type ServiceEndpoint struct {
	ServiceType string
	ServiceID   string
	ControlPath string
	EventPath   string
	ScpdPath    string
}

// Device is an immutable record for one discovered WeMo appliance.
// Re-discovery produces a new record; nothing mutates an existing one.
type Device struct {
	// ID is the stable identifier: the UPnP UDN with its "uuid:" prefix
	// stripped, or "host:port" when the description carries no UDN.
	ID string

	// Name is the device's friendly name.
	Name string

	// Type is the classified device type.
	Type DeviceType

	// Host and Port locate the device's HTTP control interface.
	Host string
	Port int

	Manufacturer string
	Model        string
	Serial       string
	Firmware     string
	MAC          string

	// Services are the advertised service endpoints, in document order.
	Services []ServiceEndpoint

	// Location is the description-document URL this record was built from.
	Location string

	// DiscoveredAt is when the description document was fetched.
	DiscoveredAt time.Time
}

// String returns a human-readable one-liner for the device.
func (d *Device) String() string {
	return fmt.Sprintf("WeMo %s %q at %s:%d", d.Type, d.Name, d.Host, d.Port)
}

// BaseURL returns the HTTP base URL for the device.
func (d *Device) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", d.Host, d.Port)
}

// Service returns the first endpoint whose service-type URN contains marker
// (e.g. "basicevent" or "insight").
func (d *Device) Service(marker string) (ServiceEndpoint, bool) {
	for _, s := range d.Services {
		if strings.Contains(strings.ToLower(s.ServiceType), strings.ToLower(marker)) {
			return s, true
		}
	}
	return ServiceEndpoint{}, false
}

// dedupeByID collapses records describing the same physical device. Distinct
// description locations can describe one device when it answers on several
// interfaces. The first record for an ID wins.
func dedupeByID(devices []*Device) []*Device {
	seen := make(map[string]bool, len(devices))
	out := make([]*Device, 0, len(devices))
	for _, d := range devices {
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		out = append(out, d)
	}
	return out
}
