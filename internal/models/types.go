package models

// Package models defines the sensor telemetry types shared by the analysis
// engine, the heatmap renderer, the simulator and the transports.
//
// A snapshot is supplied wholesale by the caller and is never mutated by the
// engine. JSON field names follow the frontend contract:
//
//	{"sensors":[{"id":"p-0-h0-f0","status":"online","temperature":22,
//	  "humidity":45,"x":-14.24,"y":3,"z":-10,"drift":0.1}],
//	 "status":{"analysisFocus":"HSE"}}

// Focus selects the reporting policy applied to an analysis.
type Focus string

const (
	FocusHSE         Focus = "HSE"
	FocusEnergy      Focus = "ENERGY"
	FocusMaintenance Focus = "MAINTENANCE"
	FocusDiagnostic  Focus = "DIAGNOSTIC"
)

// Sensor status values. Anything other than StatusOnline is excluded from
// analysis; only StatusOffline counts towards sensor failures.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// SensorReading is one sensor's state within a snapshot.
type SensorReading struct {
	ID          string  `json:"id,omitempty"`
	Type        string  `json:"type,omitempty"` // pillar, wall, ceiling
	Status      string  `json:"status"`
	Temperature float64 `json:"temperature"` // °C
	Humidity    float64 `json:"humidity"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Z           float64 `json:"z"`
	Drift       float64 `json:"drift"` // per-tick calibration offset, 0 when absent
}

// Online reports whether the reading takes part in analysis.
func (s SensorReading) Online() bool {
	return s.Status == StatusOnline
}

// Position returns the sensor's 3-D coordinates.
func (s SensorReading) Position() [3]float64 {
	return [3]float64{s.X, s.Y, s.Z}
}

// SiteStatus carries the operator configuration sent along with a snapshot.
// A snapshot without an analysisFocus key is analysed under HSE. A key that is
// present but empty or null is kept as given and falls to the generic report.
type SiteStatus struct {
	AnalysisFocus Focus `json:"analysisFocus"`

	focusSet bool
}

// AnalysisRequest is the full input of one analysis.
type AnalysisRequest struct {
	Sensors []SensorReading `json:"sensors"`
	Status  SiteStatus      `json:"status"`
}

// Focus returns the requested focus, HSE when none was given.
func (r *AnalysisRequest) Focus() Focus {
	if r.Status.AnalysisFocus == "" && !r.Status.focusSet {
		return FocusHSE
	}
	return r.Status.AnalysisFocus
}

// OfflineCount counts readings explicitly marked offline.
func (r *AnalysisRequest) OfflineCount() int {
	n := 0
	for _, s := range r.Sensors {
		if s.Status == StatusOffline {
			n++
		}
	}
	return n
}
