package provision

import (
	"fmt"
	"strings"
)

// Method selects which legacy keydata-derivation scheme a device generation
// uses. The right method is a firmware-compatibility question decided by the
// caller; this package only guarantees each variant is reproduced exactly.
type Method int

const (
	// Method1 splices the passphrase key material as
	// mac[0:6] + serial + mac[6:12]. Earliest firmware.
	Method1 Method = iota + 1

	// Method2 is Method1 with a fixed 32-character vendor suffix
	// appended. Covers the majority of devices in the field.
	Method2

	// Method3 uses a differently-ordered splice plus a second fixed
	// constant, seen on a minority device subtype.
	Method3
)

// String returns a human-readable method name.
func (m Method) String() string {
	switch m {
	case Method1:
		return "method1"
	case Method2:
		return "method2"
	case Method3:
		return "method3"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// Vendor constants appended to the spliced key material. These must match
// device firmware byte-for-byte; do not reformat them.
const (
	method2Magic = "e1559a6bc3f98c0d2a74e85b16d9f04c"
	method3Magic = "7b92d1c5a80f463e"
)

// macSeparators are the separator characters stripped from a MAC before
// validation.
const macSeparators = ":-. "

// NormalizeMAC strips separators from a MAC address and validates that
// exactly 12 hex digits remain. Wrong-length input fails here, before any
// cryptographic work, rather than silently truncating into a wrong key.
func NormalizeMAC(mac string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(macSeparators, r) {
			return -1
		}
		return r
	}, mac)

	if len(cleaned) != 12 {
		return "", fmt.Errorf("provision: MAC must be 12 hex digits, got %d after stripping separators", len(cleaned))
	}
	for _, r := range cleaned {
		if !isHexDigit(r) {
			return "", fmt.Errorf("provision: MAC contains non-hex character %q", r)
		}
	}
	return cleaned, nil
}

func isHexDigit(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'f':
		return true
	case r >= 'A' && r <= 'F':
		return true
	default:
		return false
	}
}

// Keydata derives the device-unique key string for a method. mac may carry
// separators; serial is used verbatim.
func Keydata(method Method, mac, serial string) (string, error) {
	m, err := NormalizeMAC(mac)
	if err != nil {
		return "", err
	}
	if serial == "" {
		return "", fmt.Errorf("provision: serial must not be empty")
	}

	switch method {
	case Method1:
		return m[0:6] + serial + m[6:12], nil
	case Method2:
		return m[0:6] + serial + m[6:12] + method2Magic, nil
	case Method3:
		return m[6:12] + serial + m[0:6] + method3Magic, nil
	default:
		return "", fmt.Errorf("provision: unknown key-derivation method %d", int(method))
	}
}
