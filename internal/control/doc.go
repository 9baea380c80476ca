// Package control issues named actions against a WeMo device's control
// endpoint.
//
// Every operation routes through one retrying executor: an attempt is a
// single SOAP POST bounded by the HTTP client's timeout, failed attempts are
// retried after a linearly growing delay, and an exhausted budget surfaces as
// one typed operation failure carrying the last underlying cause.
//
//	client := control.NewClient(device)
//	state, err := client.GetState()
//
// Wire states are normalized defensively: anything other than 0 (off) and 8
// (standby) counts as on. Insight devices additionally expose telemetry
// through InsightClient.
//
// Errors cross this package's boundary as *DeviceError values carrying an
// ErrorType, the action, the device ID and the underlying cause; callers
// branch with errors.As or the Is* predicates rather than string matching.
package control
