package control

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/muurk/wemolink/internal/discovery"
)

// newTestClient builds a client aimed at a fake device, with sleeping
// disabled so retry tests run instantly.
func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parsing test server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parsing test server port: %v", err)
	}

	dev := &discovery.Device{
		ID:   "testdevice",
		Name: "Test Plug",
		Host: u.Hostname(),
		Port: port,
		Services: []discovery.ServiceEndpoint{
			{
				ServiceType: BasicEventService,
				ControlPath: "/upnp/control/basicevent1",
			},
			{
				ServiceType: InsightService,
				ControlPath: "/upnp/control/insight1",
			},
		},
	}

	c := NewClient(dev)
	c.sleep = func(time.Duration) {}
	return c, srv
}

// soapResponse wraps inner in a response envelope for the given action.
func soapResponse(action, inner string) string {
	return `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">` +
		`<s:Body><u:` + action + `Response xmlns:u="urn:Belkin:service:basicevent:1">` +
		inner +
		`</u:` + action + `Response></s:Body></s:Envelope>`
}

func TestGetState(t *testing.T) {
	cases := []struct {
		wire string
		want BinaryState
	}{
		{"0", StateOff},
		{"1", StateOn},
		{"8", StateStandby},
		{"3", StateOn},
	}

	for _, tc := range cases {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, soapResponse("GetBinaryState", "<BinaryState>"+tc.wire+"</BinaryState>"))
		}))
		state, err := c.GetState()
		if err != nil {
			t.Fatalf("wire %q: unexpected error: %v", tc.wire, err)
		}
		if state != tc.want {
			t.Errorf("wire %q: state = %v, want %v", tc.wire, state, tc.want)
		}
	}
}

func TestInvoke_SucceedsAfterRetry(t *testing.T) {
	var attempts atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, soapResponse("GetBinaryState", "<BinaryState>1</BinaryState>"))
	}))
	c.Retries = 2

	var slept []time.Duration
	c.BaseDelay = 100 * time.Millisecond
	c.sleep = func(d time.Duration) { slept = append(slept, d) }

	state, err := c.GetState()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != StateOn {
		t.Errorf("state = %v, want %v", state, StateOn)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	// Linear backoff: base*1 before the first retry, base*2 before the second.
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(slept) != len(want) {
		t.Fatalf("slept %d times, want %d", len(slept), len(want))
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestInvoke_ExhaustsRetryBudget(t *testing.T) {
	var attempts atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	c.Retries = 2

	_, err := c.GetState()
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3 (initial + 2 retries)", got)
	}
	if !IsOperationFailed(err) {
		t.Errorf("expected operation-failed error, got %v", err)
	}
}

func TestInvoke_FaultSurfacesThroughWrapper(t *testing.T) {
	faultBody := `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>` +
		`<s:Fault><detail><UPnPError><errorCode>401</errorCode>` +
		`<errorDescription>Invalid Action</errorDescription></UPnPError></detail></s:Fault>` +
		`</s:Body></s:Envelope>`
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, faultBody)
	}))
	c.Retries = 0

	_, err := c.GetState()
	if err == nil {
		t.Fatal("expected fault error")
	}
	if !IsOperationFailed(err) {
		t.Errorf("expected operation-failed wrapper, got %v", err)
	}
	if !IsProtocolFault(err) {
		t.Errorf("expected protocol fault in the chain, got %v", err)
	}
}

func TestToggle(t *testing.T) {
	cases := []struct {
		current  string
		wantBody string
		wantNew  BinaryState
	}{
		{"0", "<BinaryState>1</BinaryState>", StateOn},
		{"1", "<BinaryState>0</BinaryState>", StateOff},
		// Standby devices are drawing power; toggle turns them off.
		{"8", "<BinaryState>0</BinaryState>", StateOff},
	}

	for _, tc := range cases {
		var setBody string
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			action := r.Header.Get("SOAPACTION")
			switch {
			case strings.Contains(action, "GetBinaryState"):
				fmt.Fprint(w, soapResponse("GetBinaryState", "<BinaryState>"+tc.current+"</BinaryState>"))
			case strings.Contains(action, "SetBinaryState"):
				setBody = string(body)
				fmt.Fprint(w, soapResponse("SetBinaryState", ""))
			default:
				t.Errorf("unexpected action %q", action)
				w.WriteHeader(http.StatusInternalServerError)
			}
		}))

		newState, err := c.Toggle()
		if err != nil {
			t.Fatalf("current %q: unexpected error: %v", tc.current, err)
		}
		if newState != tc.wantNew {
			t.Errorf("current %q: new state = %v, want %v", tc.current, newState, tc.wantNew)
		}
		if !strings.Contains(setBody, tc.wantBody) {
			t.Errorf("current %q: set request %q missing %q", tc.current, setBody, tc.wantBody)
		}
	}
}

func TestSetName_EscapesName(t *testing.T) {
	var gotBody string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		fmt.Fprint(w, soapResponse("ChangeFriendlyName", ""))
	}))

	if err := c.SetName(`Kitchen <&> "Lamp"`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "<FriendlyName>Kitchen &lt;&amp;&gt; &quot;Lamp&quot;</FriendlyName>"
	if !strings.Contains(gotBody, want) {
		t.Errorf("request body %q missing escaped name %q", gotBody, want)
	}
	if strings.Contains(gotBody, `<&>`) {
		t.Error("raw metacharacters leaked into the request body")
	}
}

func TestGetName(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, soapResponse("GetFriendlyName", "<FriendlyName>Desk Lamp</FriendlyName>"))
	}))
	name, err := c.GetName()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "Desk Lamp" {
		t.Errorf("name = %q, want %q", name, "Desk Lamp")
	}
}

func TestRequestHeaders(t *testing.T) {
	var gotAction, gotContentType, gotPath string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.Header.Get("SOAPACTION")
		gotContentType = r.Header.Get("Content-Type")
		gotPath = r.URL.Path
		fmt.Fprint(w, soapResponse("GetBinaryState", "<BinaryState>0</BinaryState>"))
	}))

	if _, err := c.GetState(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := `"urn:Belkin:service:basicevent:1#GetBinaryState"`; gotAction != want {
		t.Errorf("SOAPACTION = %s, want %s", gotAction, want)
	}
	if want := `text/xml; charset="utf-8"`; gotContentType != want {
		t.Errorf("Content-Type = %q, want %q", gotContentType, want)
	}
	if want := "/upnp/control/basicevent1"; gotPath != want {
		t.Errorf("path = %q, want %q", gotPath, want)
	}
}

func TestControlURL_FallbackWithoutServiceList(t *testing.T) {
	var gotPath string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, soapResponse("GetBinaryState", "<BinaryState>0</BinaryState>"))
	}))
	c.Device.Services = nil

	if _, err := c.GetState(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "/upnp/control/basicevent1"; gotPath != want {
		t.Errorf("fallback path = %q, want %q", gotPath, want)
	}
}

func TestReachable_SingleAttempt(t *testing.T) {
	var attempts atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	c.Retries = 2

	if c.Reachable() {
		t.Error("Reachable = true for a failing device")
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1 (no retries for reachability probe)", got)
	}
}

func TestGetState_MalformedEnvelope(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>router captive portal</body></html>")
	}))
	c.Retries = 0

	_, err := c.GetState()
	if err == nil {
		t.Fatal("expected error for non-envelope response")
	}
	if !hasType(err, ErrTypeInvalidEnvelope) {
		t.Errorf("expected invalid-envelope in the chain, got %v", err)
	}
}

func TestGetState_EmptyAck(t *testing.T) {
	// A well-formed envelope whose body lacks the response element is a
	// valid empty ack; state decodes to off rather than erroring.
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body></s:Body></s:Envelope>`)
	}))

	state, err := c.GetState()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != StateOff {
		t.Errorf("state = %v, want %v", state, StateOff)
	}
}

func TestNormalizeState(t *testing.T) {
	cases := []struct {
		in   int
		want BinaryState
	}{
		{0, StateOff},
		{1, StateOn},
		{8, StateStandby},
		{2, StateOn},
		{-5, StateOn},
		{100, StateOn},
	}
	for _, tc := range cases {
		if got := NormalizeState(tc.in); got != tc.want {
			t.Errorf("NormalizeState(%d) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
