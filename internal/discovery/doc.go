// Package discovery locates Belkin WeMo devices on the local network.
//
// WeMo devices answer SSDP-style discovery: a UDP M-SEARCH query multicast to
// 239.255.255.250:1900 with the Belkin basicevent search target. Every WeMo
// device type advertises that one service, so a single query finds plugs,
// switches, dimmers, Insight meters, motion sensors, and bridges alike.
//
// # Scan Process
//
//  1. Enumerate non-internal IPv4 interfaces, skipping virtual/VPN adapters
//     (containers, hypervisor switches, tunnels). If nothing qualifies, fall
//     back to one wildcard socket.
//  2. Bind one UDP socket per interface and multicast the query from each.
//  3. Collect responses concurrently, deduplicating by the LOCATION header.
//     The query is resent once at the half-timeout to improve recall.
//  4. After the full timeout, fetch every unique description document in
//     parallel, keep only documents whose manufacturer names Belkin, and
//     classify each device from its deviceType URN and model name.
//  5. Collapse records that describe the same physical device.
//
// A scan blocks for its whole window and never fails outright for a single
// bad interface or device: partial failures accumulate in Result.Errors.
//
//	scanner := discovery.NewScanner()
//	result, err := scanner.Scan(ctx)
//	for _, d := range result.Devices {
//	    fmt.Println(d)
//	}
//
// Known devices can skip multicast entirely with Lookup, which fetches the
// description document from its conventional path directly.
//
// # Network Requirements
//
// Discovery needs multicast reachability to the devices (UDP port 1900) and
// plain HTTP access to each device's description document.
package discovery
