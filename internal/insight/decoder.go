// Package insight decodes the power-monitoring telemetry reported by WeMo
// Insight devices.
//
// The GetInsightParams action returns a single pipe-delimited record of up to
// eleven positional integers. Fields are frequently missing or garbled on
// older firmware, so every field falls back to a default instead of failing
// the decode.
package insight

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultStandbyThresholdMW is the standby power threshold assumed when the
// record omits its own, in milliwatts.
const DefaultStandbyThresholdMW = 8000

// Wire states reported in the first field of a telemetry record.
const (
	StateOff     = 0
	StateOn      = 1
	StateStandby = 8
)

// Record is one decoded telemetry snapshot.
type Record struct {
	// State is the normalized binary state: 0, 1 or 8.
	State int

	// LastChange is when the state last changed, in Unix seconds.
	LastChange int64

	// OnSeconds is how long the device has been on this session.
	OnSeconds int64

	// OnSecondsToday and OnSecondsTotal are today's and lifetime on-time.
	OnSecondsToday int64
	OnSecondsTotal int64

	// WindowSeconds is the averaging window for AveragePowerMW.
	WindowSeconds int64

	// AveragePowerMW and InstantPowerMW are in milliwatts.
	AveragePowerMW int64
	InstantPowerMW int64

	// EnergyTodayMWMin and EnergyTotalMWMin are in milliwatt-minutes.
	EnergyTodayMWMin int64
	EnergyTotalMWMin int64

	// StandbyThresholdMW is the power level below which the device counts
	// as standby, in milliwatts.
	StandbyThresholdMW int64
}

// Decode parses a pipe-delimited telemetry record. Missing or non-numeric
// fields decode to zero, except the standby threshold which defaults to
// DefaultStandbyThresholdMW. An empty record yields an all-default Record.
func Decode(raw string) Record {
	fields := strings.Split(strings.TrimSpace(raw), "|")

	at := func(i int, def int64) int64 {
		if i >= len(fields) {
			return def
		}
		n, err := strconv.ParseInt(strings.TrimSpace(fields[i]), 10, 64)
		if err != nil {
			return def
		}
		return n
	}

	return Record{
		State:              normalizeState(int(at(0, 0))),
		LastChange:         at(1, 0),
		OnSeconds:          at(2, 0),
		OnSecondsToday:     at(3, 0),
		OnSecondsTotal:     at(4, 0),
		WindowSeconds:      at(5, 0),
		AveragePowerMW:     at(6, 0),
		InstantPowerMW:     at(7, 0),
		EnergyTodayMWMin:   at(8, 0),
		EnergyTotalMWMin:   at(9, 0),
		StandbyThresholdMW: at(10, DefaultStandbyThresholdMW),
	}
}

// normalizeState collapses unexpected wire values: only 0 and 8 survive as
// themselves, everything else counts as on.
func normalizeState(v int) int {
	switch v {
	case StateOff, StateStandby:
		return v
	default:
		return StateOn
	}
}

// Summary is the human-oriented view of a telemetry record.
type Summary struct {
	On      bool
	Standby bool

	// CurrentWatts is the instantaneous draw in watts.
	CurrentWatts float64

	// TodayKWh and TotalKWh are energy use in kilowatt-hours.
	TodayKWh float64
	TotalKWh float64

	// OnFor, OnToday and OnTotal are formatted durations.
	OnFor   string
	OnToday string
	OnTotal string
}

// Summary derives the display-oriented view of the record.
func (r Record) Summary() Summary {
	return Summary{
		On:           r.State != StateOff,
		Standby:      r.State == StateStandby,
		CurrentWatts: float64(r.InstantPowerMW) / 1000,
		TodayKWh:     float64(r.EnergyTodayMWMin) / 60000,
		TotalKWh:     float64(r.EnergyTotalMWMin) / 60000,
		OnFor:        FormatDuration(r.OnSeconds),
		OnToday:      FormatDuration(r.OnSecondsToday),
		OnTotal:      FormatDuration(r.OnSecondsTotal),
	}
}

// FormatDuration renders a duration in seconds the way the Insight app does:
// bare seconds under a minute, minutes (with a seconds remainder when there
// is one) under an hour, and hours with a minutes remainder above that.
//
//	30   -> "30s"
//	90   -> "1m 30s"
//	3600 -> "1h"
//	3660 -> "1h 1m"
//	7200 -> "2h"
func FormatDuration(seconds int64) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < 3600 {
		m, s := seconds/60, seconds%60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h, m := seconds/3600, (seconds%3600)/60
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
