package insight

import "testing"

func TestDecode(t *testing.T) {
	raw := "1|1704067200|3600|7200|86400|1209600|5000|8500|120000|2400000|8000"
	rec := Decode(raw)

	if rec.State != StateOn {
		t.Errorf("State = %d, want %d", rec.State, StateOn)
	}
	if rec.LastChange != 1704067200 {
		t.Errorf("LastChange = %d, want 1704067200", rec.LastChange)
	}
	if rec.OnSeconds != 3600 {
		t.Errorf("OnSeconds = %d, want 3600", rec.OnSeconds)
	}
	if rec.OnSecondsToday != 7200 {
		t.Errorf("OnSecondsToday = %d, want 7200", rec.OnSecondsToday)
	}
	if rec.OnSecondsTotal != 86400 {
		t.Errorf("OnSecondsTotal = %d, want 86400", rec.OnSecondsTotal)
	}
	if rec.WindowSeconds != 1209600 {
		t.Errorf("WindowSeconds = %d, want 1209600", rec.WindowSeconds)
	}
	if rec.AveragePowerMW != 5000 {
		t.Errorf("AveragePowerMW = %d, want 5000", rec.AveragePowerMW)
	}
	if rec.InstantPowerMW != 8500 {
		t.Errorf("InstantPowerMW = %d, want 8500", rec.InstantPowerMW)
	}
	if rec.EnergyTodayMWMin != 120000 {
		t.Errorf("EnergyTodayMWMin = %d, want 120000", rec.EnergyTodayMWMin)
	}
	if rec.EnergyTotalMWMin != 2400000 {
		t.Errorf("EnergyTotalMWMin = %d, want 2400000", rec.EnergyTotalMWMin)
	}
	if rec.StandbyThresholdMW != 8000 {
		t.Errorf("StandbyThresholdMW = %d, want 8000", rec.StandbyThresholdMW)
	}
}

func TestDecode_Defaults(t *testing.T) {
	rec := Decode("")
	if rec.State != StateOff {
		t.Errorf("State = %d, want %d", rec.State, StateOff)
	}
	if rec.InstantPowerMW != 0 {
		t.Errorf("InstantPowerMW = %d, want 0", rec.InstantPowerMW)
	}
	if rec.StandbyThresholdMW != DefaultStandbyThresholdMW {
		t.Errorf("StandbyThresholdMW = %d, want %d", rec.StandbyThresholdMW, DefaultStandbyThresholdMW)
	}
}

func TestDecode_ShortAndGarbled(t *testing.T) {
	// Older firmware truncates the record or emits junk in numeric slots.
	rec := Decode("8|oops|120")
	if rec.State != StateStandby {
		t.Errorf("State = %d, want %d", rec.State, StateStandby)
	}
	if rec.LastChange != 0 {
		t.Errorf("garbled LastChange should decode to 0, got %d", rec.LastChange)
	}
	if rec.OnSeconds != 120 {
		t.Errorf("OnSeconds = %d, want 120", rec.OnSeconds)
	}
	if rec.StandbyThresholdMW != DefaultStandbyThresholdMW {
		t.Errorf("missing threshold should default, got %d", rec.StandbyThresholdMW)
	}
}

func TestDecode_StateNormalization(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"0", StateOff},
		{"1", StateOn},
		{"8", StateStandby},
		{"3", StateOn},
		{"-1", StateOn},
	}
	for _, tc := range cases {
		if got := Decode(tc.raw).State; got != tc.want {
			t.Errorf("Decode(%q).State = %d, want %d", tc.raw, got, tc.want)
		}
	}
}

func TestSummary(t *testing.T) {
	rec := Record{
		State:            StateStandby,
		InstantPowerMW:   8500,
		EnergyTodayMWMin: 60000,
		EnergyTotalMWMin: 90000,
		OnSeconds:        90,
	}
	s := rec.Summary()

	if !s.On {
		t.Error("standby should count as on")
	}
	if !s.Standby {
		t.Error("Standby = false, want true")
	}
	if s.CurrentWatts != 8.5 {
		t.Errorf("CurrentWatts = %v, want 8.5", s.CurrentWatts)
	}
	if s.TodayKWh != 1.0 {
		t.Errorf("TodayKWh = %v, want 1.0", s.TodayKWh)
	}
	if s.TotalKWh != 1.5 {
		t.Errorf("TotalKWh = %v, want 1.5", s.TotalKWh)
	}
	if s.OnFor != "1m 30s" {
		t.Errorf("OnFor = %q, want %q", s.OnFor, "1m 30s")
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		seconds int64
		want    string
	}{
		{0, "0s"},
		{30, "30s"},
		{59, "59s"},
		{60, "1m"},
		{90, "1m 30s"},
		{3599, "59m 59s"},
		{3600, "1h"},
		{3660, "1h 1m"},
		{7200, "2h"},
		{7260, "2h 1m"},
	}
	for _, tc := range cases {
		if got := FormatDuration(tc.seconds); got != tc.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}
