package provision

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wemolink/internal/discovery"
	"github.com/muurk/wemolink/internal/logging"
	"github.com/muurk/wemolink/internal/soap"
)

// A factory-reset device runs its own access point on a fixed subnet and
// answers provisioning calls on a fixed port. Nothing here is discoverable;
// the values are baked into the firmware.
const (
	// SetupHost is the device's address on its setup network.
	SetupHost = "10.22.22.1"

	// SetupPort is the provisioning HTTP port.
	SetupPort = 49152

	// SetupSubnet is the setup network in CIDR form. The caller's host
	// must hold an address here for the device to be reachable.
	SetupSubnet = "10.22.22.0/24"

	// WiFiSetupService is the provisioning service-type URN.
	WiFiSetupService = "urn:Belkin:service:WiFiSetup:1"

	// wifiSetupControlPath is the provisioning control endpoint.
	wifiSetupControlPath = "/upnp/control/WiFiSetup1"

	// provisionAttempts is fixed: one initial attempt plus exactly two
	// retries. Not configurable.
	provisionAttempts = 3

	// provisionRetryDelay is the fixed inter-attempt delay.
	provisionRetryDelay = 2 * time.Second

	// DefaultPairingStatus stands in when the device acknowledges without
	// a PairingStatus field.
	DefaultPairingStatus = "Sent"
)

// AuthMode is the WiFi authentication mode for a provisioning request.
type AuthMode int

const (
	AuthOpen AuthMode = iota
	AuthWPA
	AuthWPA2
)

// Wire returns the string the firmware expects for the mode.
func (a AuthMode) Wire() string {
	switch a {
	case AuthOpen:
		return "OPEN"
	case AuthWPA:
		return "WPAPSK"
	case AuthWPA2:
		return "WPA2PSK"
	default:
		return fmt.Sprintf("AuthMode(%d)", int(a))
	}
}

// CipherMode is the WiFi cipher for a provisioning request.
type CipherMode int

const (
	CipherNone CipherMode = iota
	CipherTKIP
	CipherAES
)

// Wire returns the string the firmware expects for the cipher.
func (c CipherMode) Wire() string {
	switch c {
	case CipherNone:
		return "NONE"
	case CipherTKIP:
		return "TKIP"
	case CipherAES:
		return "AES"
	default:
		return fmt.Sprintf("CipherMode(%d)", int(c))
	}
}

// Request carries everything needed to join a factory-reset device to a
// home network.
type Request struct {
	SSID       string
	Passphrase string
	Auth       AuthMode
	Encryption CipherMode

	// MAC and Serial identify the device for key derivation. The MAC may
	// carry separators.
	MAC    string
	Serial string

	// Channel is the WiFi channel; 0 means auto.
	Channel int

	// Method selects the key-derivation variant for this device
	// generation.
	Method Method
}

// Validate checks the request before any network or cryptographic work.
func (r *Request) Validate() error {
	if r.SSID == "" {
		return fmt.Errorf("provision: SSID must not be empty")
	}
	if len(r.SSID) > 32 {
		return fmt.Errorf("provision: SSID too long (max 32 chars): %d chars", len(r.SSID))
	}
	if r.Auth != AuthOpen && r.Passphrase == "" {
		return fmt.Errorf("provision: passphrase required for %s", r.Auth.Wire())
	}
	if _, err := NormalizeMAC(r.MAC); err != nil {
		return err
	}
	return nil
}

// Attempt records one provisioning try, kept for operator-facing debugging
// rather than program logic.
type Attempt struct {
	Status   int
	Response string
	Err      error
}

// SendResult is the outcome of a provisioning request.
type SendResult struct {
	Success bool

	// PairingStatus is the parsed status text, DefaultPairingStatus when
	// the device acknowledged without one.
	PairingStatus string

	// RequestXML is the envelope that was sent.
	RequestXML string

	// Attempts holds per-attempt diagnostics.
	Attempts []Attempt
}

// Provisioner talks to a factory-reset device on its setup network.
type Provisioner struct {
	// BaseURL is the device's provisioning base URL. Empty means the
	// fixed setup address.
	BaseURL string

	// HTTPClient performs the POSTs.
	HTTPClient *http.Client

	// sleep waits between attempts; tests replace it.
	sleep func(time.Duration)
}

// NewProvisioner returns a Provisioner targeting the fixed setup endpoint.
func NewProvisioner() *Provisioner {
	return &Provisioner{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		sleep:      time.Sleep,
	}
}

func (p *Provisioner) baseURL() string {
	if p.BaseURL != "" {
		return p.BaseURL
	}
	return fmt.Sprintf("http://%s:%d", SetupHost, SetupPort)
}

// Send encrypts the passphrase and issues ConnectHomeNetwork. The request is
// retried exactly twice after a failed first attempt; the first HTTP-success
// response wins. All per-attempt diagnostics are preserved in the result.
func (p *Provisioner) Send(req Request) (*SendResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	password := ""
	if req.Auth != AuthOpen {
		encrypted, err := EncryptPassphrase(req.Passphrase, req.MAC, req.Serial, req.Method, true)
		if err != nil {
			return nil, err
		}
		password = encrypted
	}

	inner := fmt.Sprintf(
		"<ssid>%s</ssid><auth>%s</auth><password>%s</password><encrypt>%s</encrypt><channel>%d</channel>",
		soap.EscapeXML(req.SSID), req.Auth.Wire(), soap.EscapeXML(password),
		req.Encryption.Wire(), req.Channel)
	envelope := soap.BuildEnvelope("ConnectHomeNetwork", WiFiSetupService, inner)

	result := &SendResult{RequestXML: envelope}
	urlStr := p.baseURL() + wifiSetupControlPath

	for attempt := 0; attempt < provisionAttempts; attempt++ {
		if attempt > 0 {
			p.sleep(provisionRetryDelay)
		}

		status, raw, err := p.post(urlStr, "ConnectHomeNetwork", envelope)
		result.Attempts = append(result.Attempts, Attempt{
			Status:   status,
			Response: string(raw),
			Err:      err,
		})
		if err != nil || status < 200 || status > 299 {
			logging.Warn("Provisioning attempt failed",
				zap.Int("attempt", attempt+1),
				zap.Int("status", status),
				zap.Error(err),
			)
			continue
		}

		result.Success = true
		result.PairingStatus = DefaultPairingStatus
		if el, perr := soap.ParseResponse("ConnectHomeNetwork", raw); perr == nil && el != nil {
			if s := el.TextOf("PairingStatus"); s != "" {
				result.PairingStatus = s
			}
		}
		return result, nil
	}

	return result, nil
}

// post issues one provisioning POST and returns the status and raw body.
func (p *Provisioner) post(urlStr, action, envelope string) (int, []byte, error) {
	req, err := http.NewRequest(http.MethodPost, urlStr, strings.NewReader(envelope))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPACTION", soap.ActionHeader(WiFiSetupService, action))

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, raw, nil
}

// invokeSimple issues one non-retried provisioning action and returns its
// response element.
func (p *Provisioner) invokeSimple(action string) (*soap.Element, error) {
	envelope := soap.BuildEnvelope(action, WiFiSetupService, "")
	status, raw, err := p.post(p.baseURL()+wifiSetupControlPath, action, envelope)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		if fault, ok := soap.ParseFault(raw); ok {
			return nil, fmt.Errorf("provision: %s: %s", action, fault)
		}
		return nil, fmt.Errorf("provision: %s: unexpected status %d", action, status)
	}
	return soap.ParseResponse(action, raw)
}

// AccessPoint is one network from the device's site survey.
type AccessPoint struct {
	SSID     string
	Channel  string
	Security string
}

// GetApList asks the device for the networks it can see. Entries arrive as
// comma-terminated lines of pipe-delimited fields; fields past the channel
// vary by firmware and are kept raw in Security.
func (p *Provisioner) GetApList() ([]AccessPoint, error) {
	el, err := p.invokeSimple("GetApList")
	if err != nil {
		return nil, err
	}
	if el == nil {
		return nil, nil
	}

	var aps []AccessPoint
	for _, line := range strings.Split(el.TextOf("ApList"), "\n") {
		line = strings.TrimSuffix(strings.TrimSpace(line), ",")
		if line == "" || strings.HasPrefix(line, "Page:") {
			continue
		}
		fields := strings.Split(line, "|")
		ap := AccessPoint{SSID: strings.TrimSpace(fields[0])}
		if len(fields) > 1 {
			ap.Channel = strings.TrimSpace(fields[1])
		}
		if len(fields) > 2 {
			ap.Security = strings.Join(fields[2:], "|")
		}
		if ap.SSID != "" {
			aps = append(aps, ap)
		}
	}
	return aps, nil
}

// GetNetworkStatus returns the device's current pairing/network status text.
func (p *Provisioner) GetNetworkStatus() (string, error) {
	el, err := p.invokeSimple("GetNetworkStatus")
	if err != nil {
		return "", err
	}
	if el == nil {
		return "", nil
	}
	return el.TextOf("NetworkStatus"), nil
}

// CloseSetup tells the device to tear down its setup access point once
// provisioning has succeeded.
func (p *Provisioner) CloseSetup() error {
	_, err := p.invokeSimple("CloseSetup")
	return err
}

// SetupTarget is the result of probing for a factory-reset device.
type SetupTarget struct {
	// OnSetupNetwork reports whether this host holds an address on the
	// device setup subnet.
	OnSetupNetwork bool

	// Device is the setup device's description, when it answered.
	Device *discovery.Device
}

// DetectSetupTarget checks whether the host is attached to a device's setup
// network and, if so, fetches the device's description document directly.
func DetectSetupTarget(ctx context.Context) (*SetupTarget, error) {
	_, subnet, err := net.ParseCIDR(SetupSubnet)
	if err != nil {
		return nil, err
	}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("provision: enumerate addresses: %w", err)
	}

	target := &SetupTarget{}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if subnet.Contains(ipNet.IP) {
			target.OnSetupNetwork = true
			break
		}
	}
	if !target.OnSetupNetwork {
		return target, nil
	}

	dev, err := discovery.Lookup(ctx, SetupHost, SetupPort)
	if err != nil {
		return target, fmt.Errorf("provision: setup device did not answer: %w", err)
	}
	target.Device = dev
	return target, nil
}
