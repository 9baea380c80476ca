package discovery

import (
	"net"
	"strings"
)

// virtualPrefixes are interface-name patterns for adapters that cannot carry
// useful multicast traffic to the physical LAN: hypervisor switches,
// container bridges, tunnels, and VPN adapters. Candidates matching any of
// these are skipped during interface enumeration.
var virtualPrefixes = []string{
	"vethernet", // Hyper-V virtual switch
	"veth",      // container peer interfaces
	"docker",
	"br-",   // docker user-defined bridges
	"virbr", // libvirt
	"vmnet", // VMware
	"vboxnet",
	"tun",
	"tap",
	"utun", // macOS tunnels
	"wg",   // WireGuard
	"zt",   // ZeroTier
	"tailscale",
	"ham", // Hamachi
}

// isVirtualName reports whether an interface name matches a known
// virtual/VPN adapter pattern. Matching is case-insensitive.
func isVirtualName(name string) bool {
	n := strings.ToLower(name)
	for _, p := range virtualPrefixes {
		if strings.HasPrefix(n, p) {
			return true
		}
	}
	return false
}

// candidate is one network interface a discovery socket can be bound to.
type candidate struct {
	name string
	ip   net.IP
}

// usableInterfaces enumerates non-internal IPv4 interfaces suitable for
// multicast discovery, excluding known virtual adapters. An empty result
// means the caller should fall back to a single wildcard-bound socket.
func usableInterfaces() []candidate {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var out []candidate
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 ||
			iface.Flags&net.FlagLoopback != 0 ||
			iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		if isVirtualName(iface.Name) {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipNet.IP.To4()
			if ip4 == nil || ip4.IsLoopback() {
				continue
			}
			out = append(out, candidate{name: iface.Name, ip: ip4})
			break // one socket per interface
		}
	}
	return out
}
