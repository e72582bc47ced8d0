package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrMalformedInput marks a snapshot that cannot be analysed: a missing
// required field, a non-numeric measurement or a missing sensor list.
var ErrMalformedInput = errors.New("malformed input")

// sensorWire mirrors SensorReading with optional fields so that missing
// measurements can be told apart from zero values.
type sensorWire struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Status      *string  `json:"status"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	X           *float64 `json:"x"`
	Y           *float64 `json:"y"`
	Z           *float64 `json:"z"`
	Drift       *float64 `json:"drift"`
}

// UnmarshalJSON decodes a sensor record and rejects records without a status
// or without any of the required measurements.
func (s *SensorReading) UnmarshalJSON(data []byte) error {
	var w sensorWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: sensor: %v", ErrMalformedInput, err)
	}
	if w.Status == nil {
		return fmt.Errorf("%w: sensor %q: missing status", ErrMalformedInput, w.ID)
	}
	required := []struct {
		name string
		v    *float64
	}{
		{"temperature", w.Temperature},
		{"humidity", w.Humidity},
		{"x", w.X},
		{"y", w.Y},
		{"z", w.Z},
	}
	for _, f := range required {
		if f.v == nil {
			return fmt.Errorf("%w: sensor %q: missing %s", ErrMalformedInput, w.ID, f.name)
		}
	}

	*s = SensorReading{
		ID:          w.ID,
		Type:        w.Type,
		Status:      *w.Status,
		Temperature: *w.Temperature,
		Humidity:    *w.Humidity,
		X:           *w.X,
		Y:           *w.Y,
		Z:           *w.Z,
	}
	if w.Drift != nil {
		s.Drift = *w.Drift
	}
	return nil
}

// UnmarshalJSON accepts any JSON value for analysisFocus. Strings are used
// verbatim, null becomes an empty focus, and any other value is kept as its
// raw text so that it routes to the generic report instead of failing. Only a
// missing key leaves the focus unset.
func (st *SiteStatus) UnmarshalJSON(data []byte) error {
	var raw struct {
		AnalysisFocus json.RawMessage `json:"analysisFocus"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: status: %v", ErrMalformedInput, err)
	}
	focus := bytes.TrimSpace(raw.AnalysisFocus)
	st.AnalysisFocus = ""
	st.focusSet = len(focus) > 0
	if !st.focusSet || bytes.Equal(focus, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(focus, &s); err == nil {
		st.AnalysisFocus = Focus(s)
		return nil
	}
	st.AnalysisFocus = Focus(focus)
	return nil
}

// MarshalJSON omits an unset focus so that a re-encoded snapshot still
// defaults to HSE, and keeps an explicitly empty one.
func (st SiteStatus) MarshalJSON() ([]byte, error) {
	if st.AnalysisFocus == "" && !st.focusSet {
		return []byte("{}"), nil
	}
	return json.Marshal(struct {
		AnalysisFocus Focus `json:"analysisFocus"`
	}{st.AnalysisFocus})
}

// UnmarshalJSON requires the sensors key to be present and non-null.
func (r *AnalysisRequest) UnmarshalJSON(data []byte) error {
	var wire struct {
		Sensors *[]SensorReading `json:"sensors"`
		Status  *SiteStatus      `json:"status"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		if errors.Is(err, ErrMalformedInput) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if wire.Sensors == nil {
		return fmt.Errorf("%w: missing sensors", ErrMalformedInput)
	}
	r.Sensors = *wire.Sensors
	r.Status = SiteStatus{}
	if wire.Status != nil {
		r.Status = *wire.Status
	}
	return nil
}

// DecodeAnalysisRequest reads exactly one JSON snapshot from rd. Anything
// but whitespace after the document is malformed.
func DecodeAnalysisRequest(rd io.Reader) (*AnalysisRequest, error) {
	dec := json.NewDecoder(rd)
	var req AnalysisRequest
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, ErrMalformedInput) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after snapshot", ErrMalformedInput)
	}
	return &req, nil
}

// ParseAnalysisRequest decodes a snapshot held in memory.
func ParseAnalysisRequest(data []byte) (*AnalysisRequest, error) {
	return DecodeAnalysisRequest(bytes.NewReader(data))
}
