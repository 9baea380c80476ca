package discovery

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/muurk/wemolink/internal/logging"
)

const (
	// MulticastAddress is the SSDP multicast group and port.
	MulticastAddress = "239.255.255.250:1900"

	// SearchTarget is the search-target URN sent in discovery queries.
	// Every WeMo device type advertises this base control service, so one
	// query finds all of them.
	SearchTarget = "urn:Belkin:service:basicevent:1"

	// DefaultScanTimeout is how long a scan listens for responses when the
	// caller does not choose a timeout.
	DefaultScanTimeout = 5 * time.Second

	// MinScanTimeout and MaxScanTimeout clamp caller-supplied timeouts.
	MinScanTimeout = 1 * time.Second
	MaxScanTimeout = 30 * time.Second

	// readBufferSize fits any realistic SSDP response datagram.
	readBufferSize = 2048
)

// buildSearchRequest renders the M-SEARCH query for a search target.
func buildSearchRequest(searchTarget string) []byte {
	return []byte("M-SEARCH * HTTP/1.1\r\n" +
		"HOST: " + MulticastAddress + "\r\n" +
		"MAN: \"ssdp:discover\"\r\n" +
		"MX: 3\r\n" +
		"ST: " + searchTarget + "\r\n" +
		"\r\n")
}

// extractLocation pulls the description-document URL out of an SSDP
// response. Header-name matching is case-insensitive. Returns "" when the
// datagram carries no location header.
func extractLocation(data []byte) string {
	for _, line := range strings.Split(string(data), "\r\n") {
		if len(line) > 9 && strings.EqualFold(line[:9], "LOCATION:") {
			return strings.TrimSpace(line[9:])
		}
	}
	return ""
}

// locationSet is a deduplicating set of description URLs, safe for
// concurrent insertion from every socket's read loop.
type locationSet struct {
	mu   sync.Mutex
	locs map[string]struct{}
}

func newLocationSet() *locationSet {
	return &locationSet{locs: make(map[string]struct{})}
}

func (s *locationSet) add(loc string) {
	if loc == "" {
		return
	}
	s.mu.Lock()
	s.locs[loc] = struct{}{}
	s.mu.Unlock()
}

func (s *locationSet) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.locs))
	for loc := range s.locs {
		out = append(out, loc)
	}
	return out
}

// Result holds everything a scan produced. Per-socket and per-fetch failures
// land in Errors next to the devices that did answer; a scan never fails
// outright because one interface or one device misbehaved.
type Result struct {
	Devices  []*Device
	Duration time.Duration
	Errors   []error
}

// Err combines the accumulated errors into one, or nil when the scan was
// clean.
func (r *Result) Err() error {
	return multierr.Combine(r.Errors...)
}

// Scanner broadcasts SSDP queries across all usable network interfaces and
// resolves the responses into device records.
type Scanner struct {
	// Timeout is how long the scan listens. Clamped to
	// [MinScanTimeout, MaxScanTimeout]; zero means DefaultScanTimeout.
	Timeout time.Duration

	// SearchTarget overrides the query URN. Empty means SearchTarget.
	SearchTarget string

	// HTTPClient fetches description documents. Nil means a default
	// client; per-fetch timeouts are applied regardless.
	HTTPClient *http.Client

	// Cooldown optionally rate-limits scans. Nil means no limit.
	Cooldown *Cooldown
}

// NewScanner returns a Scanner with default settings.
func NewScanner() *Scanner {
	return &Scanner{Timeout: DefaultScanTimeout}
}

// Scan performs one full discovery pass and blocks until the scan window
// elapses. The returned Result contains whatever was found alongside any
// per-interface and per-fetch errors.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	if s.Cooldown != nil && !s.Cooldown.Allow() {
		return nil, ErrScanCooldown
	}

	timeout := s.Timeout
	switch {
	case timeout == 0:
		timeout = DefaultScanTimeout
	case timeout < MinScanTimeout:
		timeout = MinScanTimeout
	case timeout > MaxScanTimeout:
		timeout = MaxScanTimeout
	}

	searchTarget := s.SearchTarget
	if searchTarget == "" {
		searchTarget = SearchTarget
	}

	start := time.Now()
	result := &Result{}

	group, err := net.ResolveUDPAddr("udp4", MulticastAddress)
	if err != nil {
		return nil, fmt.Errorf("resolve multicast group: %w", err)
	}

	conns := s.openSockets(result)
	if len(conns) == 0 {
		result.Duration = time.Since(start)
		return result, nil
	}

	query := buildSearchRequest(searchTarget)
	locations := newLocationSet()
	deadline := start.Add(timeout)

	var wg sync.WaitGroup
	var errMu sync.Mutex
	addErr := func(err error) {
		errMu.Lock()
		result.Errors = append(result.Errors, err)
		errMu.Unlock()
	}

	for _, conn := range conns {
		if err := conn.SetReadDeadline(deadline); err != nil {
			addErr(fmt.Errorf("set deadline on %s: %w", conn.LocalAddr(), err))
		}
		if _, err := conn.WriteTo(query, group); err != nil {
			addErr(fmt.Errorf("send query from %s: %w", conn.LocalAddr(), err))
		}
		wg.Add(1)
		go func(conn *net.UDPConn) {
			defer wg.Done()
			buf := make([]byte, readBufferSize)
			for {
				n, addr, err := conn.ReadFromUDP(buf)
				if err != nil {
					// Deadline expiry or socket close ends the loop.
					return
				}
				loc := extractLocation(buf[:n])
				logging.Debug("SSDP response",
					zap.String("from", addr.String()),
					zap.String("location", loc),
				)
				locations.add(loc)
			}
		}(conn)
	}

	// One resend at the half-timeout improves recall on lossy multicast.
	halfway := time.NewTimer(timeout / 2)
	full := time.NewTimer(timeout)
	defer halfway.Stop()
	defer full.Stop()

	<-halfway.C
	for _, conn := range conns {
		if _, err := conn.WriteTo(query, group); err != nil {
			addErr(fmt.Errorf("resend query from %s: %w", conn.LocalAddr(), err))
		}
	}
	<-full.C

	for _, conn := range conns {
		_ = conn.Close()
	}
	wg.Wait()

	result.Devices = s.fetchAll(ctx, locations.all(), addErr)
	result.Duration = time.Since(start)

	logging.Info("Scan complete",
		zap.Int("devices", len(result.Devices)),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// openSockets binds one UDP socket per usable interface, falling back to a
// single wildcard socket when nothing qualifies. Bind failures accumulate in
// the result and never abort the scan.
func (s *Scanner) openSockets(result *Result) []*net.UDPConn {
	var conns []*net.UDPConn
	for _, cand := range usableInterfaces() {
		conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: cand.ip, Port: 0})
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Errorf("bind %s (%s): %w", cand.name, cand.ip, err))
			continue
		}
		logging.Debug("Discovery socket bound",
			zap.String("interface", cand.name),
			zap.String("addr", conn.LocalAddr().String()),
		)
		conns = append(conns, conn)
	}
	if len(conns) == 0 {
		conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Errorf("bind wildcard: %w", err))
			return nil
		}
		conns = append(conns, conn)
	}
	return conns
}

// fetchAll retrieves every unique description document concurrently. Fan-out
// is unbounded: response counts top out at tens of devices, and each fetch
// carries its own timeout.
func (s *Scanner) fetchAll(ctx context.Context, locations []string, addErr func(error)) []*Device {
	client := s.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	var mu sync.Mutex
	var devices []*Device
	var wg sync.WaitGroup
	for _, loc := range locations {
		wg.Add(1)
		go func(loc string) {
			defer wg.Done()
			dev, err := fetchDescription(ctx, client, loc)
			if err != nil {
				addErr(err)
				return
			}
			if dev == nil {
				return // filtered: not a WeMo description
			}
			mu.Lock()
			devices = append(devices, dev)
			mu.Unlock()
		}(loc)
	}
	wg.Wait()

	return dedupeByID(devices)
}
