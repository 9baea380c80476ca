package control

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wemolink/internal/discovery"
	"github.com/muurk/wemolink/internal/logging"
	"github.com/muurk/wemolink/internal/soap"
)

const (
	// DefaultTimeout bounds a single control attempt.
	DefaultTimeout = 10 * time.Second

	// DefaultRetries is how many times a failed action is retried on top
	// of the initial attempt.
	DefaultRetries = 2

	// DefaultBaseDelay is the base of the linear inter-attempt backoff:
	// the wait before retry N is DefaultBaseDelay * N.
	DefaultBaseDelay = 500 * time.Millisecond

	// BasicEventService is the service-type URN for on/off control.
	BasicEventService = "urn:Belkin:service:basicevent:1"

	// basicEventMarker selects the on/off endpoint from a device's
	// advertised service list.
	basicEventMarker = "basicevent"

	// maxResponseSize caps how much of a control response is read.
	maxResponseSize = 1 << 20
)

// BinaryState is the tri-valued device power state.
type BinaryState int

const (
	StateOff     BinaryState = 0
	StateOn      BinaryState = 1
	StateStandby BinaryState = 8
)

// String returns a human-readable state name.
func (s BinaryState) String() string {
	switch s {
	case StateOff:
		return "off"
	case StateOn:
		return "on"
	case StateStandby:
		return "standby"
	default:
		return fmt.Sprintf("BinaryState(%d)", int(s))
	}
}

// NormalizeState collapses the wire integer into a BinaryState. Only 0 and 8
// survive as themselves; any other value counts as on. Firmware has been
// seen reporting undocumented codes, and treating those as errors would make
// healthy devices look broken.
func NormalizeState(v int) BinaryState {
	switch v {
	case 0:
		return StateOff
	case 8:
		return StateStandby
	default:
		return StateOn
	}
}

// Client issues named control actions against one device. Operations are
// sequential per call; callers wanting parallel device polling fan out above
// this layer.
type Client struct {
	// Device is the discovery record this client controls.
	Device *discovery.Device

	// HTTPClient performs the control POSTs. Its timeout bounds one
	// attempt.
	HTTPClient *http.Client

	// Retries is how many retries follow a failed first attempt.
	Retries int

	// BaseDelay scales the linear backoff between attempts.
	BaseDelay time.Duration

	// sleep waits between attempts. Tests replace it to avoid real
	// wall-clock delays.
	sleep func(time.Duration)
}

// NewClient returns a control client for a discovered device, with default
// timeout and retry settings.
func NewClient(device *discovery.Device) *Client {
	return &Client{
		Device:     device,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		Retries:    DefaultRetries,
		BaseDelay:  DefaultBaseDelay,
		sleep:      time.Sleep,
	}
}

// controlURL resolves the control endpoint for a service marker, falling
// back to the conventional basicevent path when the device's service list
// does not advertise one.
func (c *Client) controlURL(marker, fallbackPath string) string {
	if svc, ok := c.Device.Service(marker); ok {
		return c.Device.BaseURL() + ensureLeadingSlash(svc.ControlPath)
	}
	return c.Device.BaseURL() + fallbackPath
}

func ensureLeadingSlash(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}

// invoke is the single retrying executor every operation routes through. It
// issues one request per attempt, sleeps BaseDelay*(attempt) before retry
// number attempt, and after Retries+1 total failures surfaces one typed
// operation failure carrying the last cause.
func (c *Client) invoke(action, serviceType, urlStr, inner string) (*soap.Element, error) {
	var lastErr error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			c.sleep(c.BaseDelay * time.Duration(attempt))
			logging.Debug("Retrying action",
				zap.String("action", action),
				zap.String("device", c.Device.ID),
				zap.Int("attempt", attempt+1),
			)
		}
		el, err := c.attempt(action, serviceType, urlStr, inner)
		if err == nil {
			return el, nil
		}
		lastErr = err
	}
	return nil, newOperationFailed(c.Device.ID, action, lastErr)
}

// attempt performs one control POST and parses the reply.
func (c *Client) attempt(action, serviceType, urlStr, inner string) (*soap.Element, error) {
	body := soap.BuildEnvelope(action, serviceType, inner)

	req, err := http.NewRequest(http.MethodPost, urlStr, strings.NewReader(body))
	if err != nil {
		return nil, &DeviceError{
			Type:    ErrTypeValidation,
			Message: fmt.Sprintf("bad control URL %q", urlStr),
			Action:  action,
			Err:     err,
		}
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPACTION", soap.ActionHeader(serviceType, action))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		devErr := classifyTransportError(err)
		devErr.Action = action
		devErr.DeviceID = c.Device.ID
		return nil, devErr
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		devErr := classifyTransportError(err)
		devErr.Action = action
		devErr.DeviceID = c.Device.ID
		return nil, devErr
	}

	logging.LogSOAPExchange(urlStr, action, resp.StatusCode, raw)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if fault, ok := soap.ParseFault(raw); ok {
			return nil, newFaultError(action, resp.StatusCode, fault)
		}
		return nil, newHTTPError(action, resp.StatusCode)
	}

	el, err := soap.ParseResponse(action, raw)
	if err != nil {
		return nil, newEnvelopeError(action, err)
	}
	return el, nil
}

// basicEvent invokes an action on the device's on/off control service.
func (c *Client) basicEvent(action, inner string) (*soap.Element, error) {
	urlStr := c.controlURL(basicEventMarker, "/upnp/control/basicevent1")
	return c.invoke(action, BasicEventService, urlStr, inner)
}

// GetState queries the device's current power state.
func (c *Client) GetState() (BinaryState, error) {
	el, err := c.basicEvent("GetBinaryState", "")
	if err != nil {
		return StateOff, err
	}
	return NormalizeState(el.Int("BinaryState", 0)), nil
}

// SetState switches the device on or off.
func (c *Client) SetState(on bool) error {
	v := 0
	if on {
		v = 1
	}
	_, err := c.basicEvent("SetBinaryState",
		fmt.Sprintf("<BinaryState>%d</BinaryState>", v))
	return err
}

// Toggle reads the current state and issues its complement, returning the
// new state without re-querying the device. Standby toggles to off: standby
// devices are drawing power, and "the plug is live, turn it off" is the
// toggle users mean.
func (c *Client) Toggle() (BinaryState, error) {
	state, err := c.GetState()
	if err != nil {
		return StateOff, err
	}
	if state == StateOff {
		if err := c.SetState(true); err != nil {
			return StateOff, err
		}
		return StateOn, nil
	}
	if err := c.SetState(false); err != nil {
		return StateOff, err
	}
	return StateOff, nil
}

// GetName queries the device's friendly name.
func (c *Client) GetName() (string, error) {
	el, err := c.basicEvent("GetFriendlyName", "")
	if err != nil {
		return "", err
	}
	return el.TextOf("FriendlyName"), nil
}

// SetName renames the device. The name is escaped before embedding.
func (c *Client) SetName(name string) error {
	_, err := c.basicEvent("ChangeFriendlyName",
		"<FriendlyName>"+soap.EscapeXML(name)+"</FriendlyName>")
	return err
}

// Reachable reports whether the device currently answers a state query. It
// uses a single attempt so an offline device answers quickly.
func (c *Client) Reachable() bool {
	urlStr := c.controlURL(basicEventMarker, "/upnp/control/basicevent1")
	_, err := c.attempt("GetBinaryState", BasicEventService, urlStr, "")
	return err == nil
}
