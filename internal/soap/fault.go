package soap

import "fmt"

// Fault is a structured fault returned by a device alongside a non-success
// HTTP status.
type Fault struct {
	// Code is the UPnP error code (e.g. 401 "Invalid Action").
	Code int

	// Description is the human-readable fault text. Devices report it in
	// either errorDescription or faultstring.
	Description string
}

func (f *Fault) String() string {
	if f.Description == "" {
		return fmt.Sprintf("fault %d", f.Code)
	}
	return fmt.Sprintf("fault %d: %s", f.Code, f.Description)
}

// ParseFault extracts a structured fault from an error response body. It
// returns false when no recognizable fault is present, in which case callers
// should fall back to a generic HTTP-status error.
func ParseFault(raw []byte) (*Fault, bool) {
	root, err := parseTree(raw)
	if err != nil {
		return nil, false
	}
	fault := root.Find("Fault")
	if fault == nil {
		return nil, false
	}
	f := &Fault{
		Code:        fault.Int("errorCode", 0),
		Description: fault.TextOf("errorDescription"),
	}
	if f.Description == "" {
		f.Description = fault.TextOf("faultstring")
	}
	return f, true
}
