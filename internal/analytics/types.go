package analytics

import (
	"time"
)

// Status tags every analyzer outcome.
type Status string

const (
	StatusAnalyzed         Status = "analyzed"
	StatusInsufficientData Status = "insufficient_data"
)

// Classification labels a trend direction.
type Classification string

const (
	TrendIncreasing Classification = "increasing"
	TrendDecreasing Classification = "decreasing"
	TrendStable     Classification = "stable"
	TrendDeclining  Classification = "declining"
	TrendImproving  Classification = "improving"
)

// Strength bands the magnitude of a correlation coefficient.
type Strength string

const (
	StrengthStrong   Strength = "strong"
	StrengthModerate Strength = "moderate"
	StrengthWeak     Strength = "weak"
)

// Sign is the direction of a correlation coefficient.
type Sign string

const (
	SignPositive Sign = "positive"
	SignNegative Sign = "negative"
)

// Reading is one sensor observation. Sensor fields are optional; nil means
// the device did not report it.
type Reading struct {
	PanelID     string    `json:"panelId"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature *float64  `json:"temperature,omitempty"`
	Irradiance  *float64  `json:"irradiance,omitempty"`
	Dust        *float64  `json:"dust,omitempty"`
	Tilt        *float64  `json:"tilt,omitempty"`
	Shading     *float64  `json:"shading,omitempty"`
	Voltage     *float64  `json:"voltage,omitempty"`
	Current     *float64  `json:"current,omitempty"`
}

// Power returns voltage times current.
func (r Reading) Power() (float64, bool) {
	if r.Voltage == nil || r.Current == nil {
		return 0, false
	}
	return *r.Voltage * *r.Current, true
}

// Efficiency returns power as a percentage of the rated capacity in watts.
func (r Reading) Efficiency(ratedW float64) (float64, bool) {
	if ratedW <= 0 {
		return 0, false
	}
	p, ok := r.Power()
	if !ok {
		return 0, false
	}
	return p / ratedW * 100, true
}

// Window is an inclusive time range.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// LastDays builds the window ending at now and spanning the given days.
func LastDays(now time.Time, days int) Window {
	return Window{Start: now.AddDate(0, 0, -days), End: now}
}

// Contains reports whether t falls in [Start, End].
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// IsZero reports whether the window was left unset.
func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// Days is the window span in fractional days.
func (w Window) Days() float64 {
	return w.End.Sub(w.Start).Hours() / 24
}

// Snapshot is a single telemetry fetch for one panel.
type Snapshot struct {
	PanelID        string
	RatedCapacityW float64
	Window         Window
	Readings       []Reading
}

// Point is a single timestamped value extracted from readings.
type Point struct {
	Timestamp time.Time
	Value     float64
}

// Pair is a paired temperature/efficiency sample.
type Pair struct {
	Temperature float64
	Efficiency  float64
}

// EfficiencyTrend is the fitted efficiency change over a window.
type EfficiencyTrend struct {
	Classification Classification `json:"classification"`
	CurrentValue   float64        `json:"currentValue"`
	ReferenceValue float64        `json:"referenceValue"`
	Rate           float64        `json:"rate"`
	SlopePerDay    float64        `json:"slopePerDay"`
	DataPoints     int            `json:"dataPoints"`
	PeriodDays     float64        `json:"periodDays"`
}

// MaintenanceEvent is a sharp dust drop that suggests a cleaning. It is a
// heuristic signal and never replaces recorded maintenance.
type MaintenanceEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	Magnitude  float64   `json:"magnitude"`
	DustBefore float64   `json:"dustBefore"`
	DustAfter  float64   `json:"dustAfter"`
}

// DustPattern is the classified dust trend plus inferred cleanings.
type DustPattern struct {
	Classification    Classification     `json:"classification"`
	CurrentValue      float64            `json:"currentValue"`
	ReferenceValue    float64            `json:"referenceValue"`
	Rate              float64            `json:"rate"`
	AverageLevel      float64            `json:"averageLevel"`
	LatestLevel       float64            `json:"latestLevel"`
	MaintenanceEvents []MaintenanceEvent `json:"maintenanceEvents"`
	DataPoints        int                `json:"dataPoints"`
	PeriodDays        float64            `json:"periodDays"`
}

// Range summarises a series.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// Correlation is the temperature/efficiency Pearson coefficient.
type Correlation struct {
	Coefficient      float64  `json:"coefficient"`
	Strength         Strength `json:"strength"`
	Sign             Sign     `json:"sign"`
	TemperatureRange Range    `json:"temperatureRange"`
	EfficiencyRange  Range    `json:"efficiencyRange"`
	DataPoints       int      `json:"dataPoints"`
}

// ImpactMetrics are the per-window means.
type ImpactMetrics struct {
	Power       float64 `json:"power"`
	Efficiency  float64 `json:"efficiency"`
	Dust        float64 `json:"dust"`
	Temperature float64 `json:"temperature"`
}

// Improvement holds relative changes in percent. Dust is positive when dust
// went down.
type Improvement struct {
	PowerPct      float64 `json:"power"`
	EfficiencyPct float64 `json:"efficiency"`
	DustPct       float64 `json:"dust"`
}

// Impact compares performance around a maintenance timestamp.
type Impact struct {
	MaintenanceAt time.Time     `json:"maintenanceDate"`
	Before        ImpactMetrics `json:"before"`
	After         ImpactMetrics `json:"after"`
	Improvement   Improvement   `json:"improvement"`
	BeforePoints  int           `json:"beforeDataPoints"`
	AfterPoints   int           `json:"afterDataPoints"`
}

// Bucket is one resampled interval. Averages are nil when no reading in the
// bucket carried the field.
type Bucket struct {
	Timestamp      time.Time `json:"timestamp"`
	AvgPower       *float64  `json:"avgPower,omitempty"`
	MaxPower       *float64  `json:"maxPower,omitempty"`
	MinPower       *float64  `json:"minPower,omitempty"`
	AvgTemperature *float64  `json:"avgTemperature,omitempty"`
	AvgEfficiency  *float64  `json:"avgEfficiency,omitempty"`
	AvgDust        *float64  `json:"avgDust,omitempty"`
	AvgShading     *float64  `json:"avgShading,omitempty"`
	AvgIrradiance  *float64  `json:"avgIrradiance,omitempty"`
	Count          int       `json:"count"`
}
