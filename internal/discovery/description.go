package discovery

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wemolink/internal/logging"
)

const (
	// VendorName is the manufacturer marker a description document must
	// carry to be accepted. Other UPnP devices share the multicast group,
	// so everything else is filtered out.
	VendorName = "belkin"

	// SetupPath is the conventional well-known path for the description
	// document on WeMo firmware.
	SetupPath = "/setup.xml"

	// descriptionTimeout bounds a single description-document fetch.
	descriptionTimeout = 5 * time.Second

	// maxDescriptionSize caps how much of a description document is read.
	maxDescriptionSize = 1 << 20
)

// descriptionDoc mirrors the root/device shape of a UPnP description
// document, limited to the fields this package consumes.
type descriptionDoc struct {
	XMLName xml.Name `xml:"root"`
	Device  struct {
		DeviceType      string `xml:"deviceType"`
		FriendlyName    string `xml:"friendlyName"`
		Manufacturer    string `xml:"manufacturer"`
		ModelName       string `xml:"modelName"`
		SerialNumber    string `xml:"serialNumber"`
		FirmwareVersion string `xml:"firmwareVersion"`
		MACAddress      string `xml:"macAddress"`
		UDN             string `xml:"UDN"`
		ServiceList     struct {
			Services []struct {
				ServiceType string `xml:"serviceType"`
				ServiceID   string `xml:"serviceId"`
				ControlURL  string `xml:"controlURL"`
				EventSubURL string `xml:"eventSubURL"`
				SCPDURL     string `xml:"SCPDURL"`
			} `xml:"service"`
		} `xml:"serviceList"`
	} `xml:"device"`
}

// fetchDescription retrieves and parses a description document. It returns
// (nil, nil) for well-formed documents from non-matching manufacturers: those
// are filtered, not failed.
func fetchDescription(ctx context.Context, client *http.Client, location string) (*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, descriptionTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("bad description location %q: %w", location, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", location, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", location, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDescriptionSize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}

	return parseDescription(location, raw)
}

// parseDescription builds a Device record from a description document.
func parseDescription(location string, raw []byte) (*Device, error) {
	var doc descriptionDoc
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", location, err)
	}

	dev := doc.Device
	if !strings.Contains(strings.ToLower(dev.Manufacturer), VendorName) {
		logging.Debug("Skipping non-WeMo description",
			zap.String("location", location),
			zap.String("manufacturer", dev.Manufacturer),
		)
		return nil, nil
	}

	host, port := hostPortOf(location)

	id := strings.TrimPrefix(strings.TrimSpace(dev.UDN), "uuid:")
	if id == "" {
		id = net.JoinHostPort(host, strconv.Itoa(port))
	}

	d := &Device{
		ID:           id,
		Name:         dev.FriendlyName,
		Type:         Classify(dev.DeviceType, dev.ModelName),
		Host:         host,
		Port:         port,
		Manufacturer: dev.Manufacturer,
		Model:        dev.ModelName,
		Serial:       dev.SerialNumber,
		Firmware:     dev.FirmwareVersion,
		MAC:          dev.MACAddress,
		Location:     location,
		DiscoveredAt: time.Now(),
	}
	for _, s := range dev.ServiceList.Services {
		d.Services = append(d.Services, ServiceEndpoint{
			ServiceType: s.ServiceType,
			ServiceID:   s.ServiceID,
			ControlPath: s.ControlURL,
			EventPath:   s.EventSubURL,
			ScpdPath:    s.SCPDURL,
		})
	}
	return d, nil
}

// hostPortOf extracts host and port from a description URL. Port defaults to
// 80 when the URL carries none.
func hostPortOf(location string) (string, int) {
	u, err := url.Parse(location)
	if err != nil {
		return "", 0
	}
	port := 80
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}
	return u.Hostname(), port
}

// Lookup fetches a device description directly from host:port without any
// multicast traffic. It is the point query used for known or saved devices.
// A reachable host whose description fails the manufacturer filter returns
// (nil, nil).
func Lookup(ctx context.Context, host string, port int) (*Device, error) {
	location := fmt.Sprintf("http://%s/%s",
		net.JoinHostPort(host, strconv.Itoa(port)),
		strings.TrimPrefix(SetupPath, "/"))
	client := &http.Client{Timeout: descriptionTimeout}
	return fetchDescription(ctx, client, location)
}
