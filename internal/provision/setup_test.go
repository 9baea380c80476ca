package provision

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestProvisioner(t *testing.T, handler http.Handler) *Provisioner {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewProvisioner()
	p.BaseURL = srv.URL
	p.sleep = func(time.Duration) {}
	return p
}

func validRequest() Request {
	return Request{
		SSID:       "HomeNet",
		Passphrase: "hunter22",
		Auth:       AuthWPA2,
		Encryption: CipherAES,
		MAC:        testMAC,
		Serial:     testSerial,
		Method:     Method2,
	}
}

func setupResponse(action, inner string) string {
	return `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">` +
		`<s:Body><u:` + action + `Response xmlns:u="urn:Belkin:service:WiFiSetup:1">` +
		inner +
		`</u:` + action + `Response></s:Body></s:Envelope>`
}

func TestSend(t *testing.T) {
	var gotPath, gotAction, gotBody string
	p := newTestProvisioner(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAction = r.Header.Get("SOAPACTION")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		fmt.Fprint(w, setupResponse("ConnectHomeNetwork", "<PairingStatus>Connecting</PairingStatus>"))
	}))

	res, err := p.Send(validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatal("Success = false")
	}
	if res.PairingStatus != "Connecting" {
		t.Errorf("PairingStatus = %q, want %q", res.PairingStatus, "Connecting")
	}
	if len(res.Attempts) != 1 {
		t.Errorf("attempts = %d, want 1", len(res.Attempts))
	}

	if gotPath != wifiSetupControlPath {
		t.Errorf("path = %q, want %q", gotPath, wifiSetupControlPath)
	}
	if want := `"urn:Belkin:service:WiFiSetup:1#ConnectHomeNetwork"`; gotAction != want {
		t.Errorf("SOAPACTION = %s, want %s", gotAction, want)
	}
	for _, want := range []string{
		"<ssid>HomeNet</ssid>",
		"<auth>WPA2PSK</auth>",
		"<encrypt>AES</encrypt>",
		"<channel>0</channel>",
	} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("request body missing %q", want)
		}
	}
	if strings.Contains(gotBody, "hunter22") {
		t.Error("plaintext passphrase leaked onto the wire")
	}
}

func TestSend_DefaultPairingStatus(t *testing.T) {
	p := newTestProvisioner(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, setupResponse("ConnectHomeNetwork", ""))
	}))

	res, err := p.Send(validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatal("Success = false")
	}
	if res.PairingStatus != DefaultPairingStatus {
		t.Errorf("PairingStatus = %q, want %q", res.PairingStatus, DefaultPairingStatus)
	}
}

func TestSend_RetriesExactlyTwice(t *testing.T) {
	var hits atomic.Int32
	p := newTestProvisioner(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	var sleeps int
	p.sleep = func(time.Duration) { sleeps++ }

	res, err := p.Send(validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Error("Success = true for a failing device")
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3 (initial + 2 retries)", got)
	}
	if sleeps != 2 {
		t.Errorf("sleeps = %d, want 2", sleeps)
	}
	if len(res.Attempts) != 3 {
		t.Fatalf("recorded attempts = %d, want 3", len(res.Attempts))
	}
	for i, a := range res.Attempts {
		if a.Status != http.StatusInternalServerError {
			t.Errorf("attempt %d status = %d", i, a.Status)
		}
	}
}

func TestSend_SucceedsOnSecondAttempt(t *testing.T) {
	var hits atomic.Int32
	p := newTestProvisioner(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, setupResponse("ConnectHomeNetwork", "<PairingStatus>Connecting</PairingStatus>"))
	}))

	res, err := p.Send(validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatal("Success = false")
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2 (stop at first success)", got)
	}
	if len(res.Attempts) != 2 {
		t.Errorf("recorded attempts = %d, want 2", len(res.Attempts))
	}
}

func TestSend_OpenNetworkSkipsEncryption(t *testing.T) {
	var gotBody string
	p := newTestProvisioner(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		fmt.Fprint(w, setupResponse("ConnectHomeNetwork", ""))
	}))

	req := validRequest()
	req.Auth = AuthOpen
	req.Encryption = CipherNone
	req.Passphrase = ""

	res, err := p.Send(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatal("Success = false")
	}
	if !strings.Contains(gotBody, "<password></password>") {
		t.Errorf("open network should send an empty password, body: %q", gotBody)
	}
	if !strings.Contains(gotBody, "<auth>OPEN</auth>") {
		t.Errorf("body missing OPEN auth: %q", gotBody)
	}
}

func TestRequestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Request)
		ok     bool
	}{
		{"valid", func(r *Request) {}, true},
		{"empty ssid", func(r *Request) { r.SSID = "" }, false},
		{"long ssid", func(r *Request) { r.SSID = strings.Repeat("x", 33) }, false},
		{"wpa2 without passphrase", func(r *Request) { r.Passphrase = "" }, false},
		{"open without passphrase", func(r *Request) { r.Auth = AuthOpen; r.Passphrase = "" }, true},
		{"bad mac", func(r *Request) { r.MAC = "nope" }, false},
	}
	for _, tc := range cases {
		req := validRequest()
		tc.mutate(&req)
		err := req.Validate()
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestGetApList(t *testing.T) {
	apList := "Page:1/1\n" +
		"HomeNet|6|WPA2PSK/AES,\n" +
		"CoffeeShop|11|OPEN/NONE,\n" +
		"|3|WPA2PSK/AES,\n" + // nameless entries are dropped
		"\n"
	p := newTestProvisioner(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, setupResponse("GetApList", "<ApList>"+apList+"</ApList>"))
	}))

	aps, err := p.GetApList()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(aps) != 2 {
		t.Fatalf("aps = %d, want 2", len(aps))
	}
	if aps[0].SSID != "HomeNet" || aps[0].Channel != "6" || aps[0].Security != "WPA2PSK/AES" {
		t.Errorf("first AP = %+v", aps[0])
	}
	if aps[1].SSID != "CoffeeShop" || aps[1].Security != "OPEN/NONE" {
		t.Errorf("second AP = %+v", aps[1])
	}
}

func TestGetNetworkStatus(t *testing.T) {
	p := newTestProvisioner(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, setupResponse("GetNetworkStatus", "<NetworkStatus>1</NetworkStatus>"))
	}))

	status, err := p.GetNetworkStatus()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != "1" {
		t.Errorf("status = %q, want %q", status, "1")
	}
}

func TestAuthCipherWire(t *testing.T) {
	if AuthOpen.Wire() != "OPEN" || AuthWPA.Wire() != "WPAPSK" || AuthWPA2.Wire() != "WPA2PSK" {
		t.Error("auth wire strings wrong")
	}
	if CipherNone.Wire() != "NONE" || CipherTKIP.Wire() != "TKIP" || CipherAES.Wire() != "AES" {
		t.Error("cipher wire strings wrong")
	}
}
