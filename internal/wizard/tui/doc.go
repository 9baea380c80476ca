// Package tui implements the interactive wizard: scan the network, pick a
// device from the list, and control it (on/off/toggle, Insight telemetry)
// without remembering addresses or flags.
//
// The wizard is a single bubbletea model with three screens (scanning,
// picking, device). Network work never runs in Update; scans and control
// calls are issued as tea.Cmd values and land back as messages.
package tui
