// Package report turns analysis findings into the single status line shown
// to operators. The wording depends on the analysis focus.
package report

import (
	"fmt"
	"strings"

	"github.com/kubilitics/kubilitics-thermal/internal/analytics/stats"
	"github.com/kubilitics/kubilitics-thermal/internal/models"
)

// Tag is the bracketed prefix of every report line.
type Tag string

const (
	TagSystem       Tag = "SYSTEM"
	TagHSECritical  Tag = "HSE_CRITICAL"
	TagHSEAdvisory  Tag = "HSE_ADVISORY"
	TagHSENominal   Tag = "HSE_NOMINAL"
	TagMaintenance  Tag = "MAINT_REPORT"
	TagDiagnosticML Tag = "DIAG_ML"
)

// Fixed report lines.
const (
	NoOnlineSensors = "[SYSTEM] No online sensors available for analysis."
	EnergyDisabled  = "[SYSTEM] Energy analytics disabled. Use HSE or MAINTENANCE for relevant diagnostics."
)

// HSE escalation thresholds in °C.
const (
	CriticalMaxTemp = 85.0
	AdvisoryMaxTemp = 70.0
)

// Thresholds for the maintenance and diagnostic policies.
const (
	VarianceStdDev     = 5.0
	UniformStdDev      = 3.0
	MaxConfidence      = 95
	AnomalyPenalty     = 15
	OfflinePenalty     = 20
	MaintenanceHorizon = 70
)

// Findings is everything a policy may draw on.
type Findings struct {
	Focus            models.Focus
	AnomalyCount     int
	ClusterConfirmed bool
	Stats            stats.Summary
	OnlineCount      int
	OfflineCount     int
}

// Report is a rendered status line and its tag.
type Report struct {
	Tag  Tag
	Text string

	// Rule names the policy rule that produced the line.
	Rule string
}

func (r Report) String() string { return r.Text }

// rule renders a report when its condition matches.
type rule struct {
	name  string
	match func(f *Findings) bool
	build func(f *Findings) Report
}

// policies maps a focus to its ordered rules; the first match wins.
var policies = map[models.Focus][]rule{
	models.FocusHSE: {
		{
			name:  "clustered",
			match: func(f *Findings) bool { return f.ClusterConfirmed },
			build: func(f *Findings) Report {
				return newReport(TagHSECritical, "Risk Level: HIGH. %d clustered anomalous signatures detected. Delta T: %.1f°C. Trend: %s. Immediate investigation required.",
					f.AnomalyCount, f.Stats.Range, f.Stats.Trend)
			},
		},
		{
			name:  "multiple-hot",
			match: func(f *Findings) bool { return f.AnomalyCount >= 2 && f.Stats.Max > CriticalMaxTemp },
			build: func(f *Findings) Report {
				return newReport(TagHSECritical, "Risk Level: HIGH. Multiple anomalies detected across sensors. Delta T: %.1f°C. Trend: %s. Immediate investigation required.",
					f.Stats.Range, f.Stats.Trend)
			},
		},
		{
			name:  "advisory",
			match: func(f *Findings) bool { return f.AnomalyCount > 0 || f.Stats.Max > AdvisoryMaxTemp },
			build: func(f *Findings) Report {
				return newReport(TagHSEAdvisory, "Risk Level: MEDIUM. %d anomalous signatures detected (no spatial consensus). Delta T: %.1f°C. Check affected nodes before escalation.",
					f.AnomalyCount, f.Stats.Range)
			},
		},
		{
			name:  "nominal",
			match: always,
			build: func(f *Findings) Report {
				return newReport(TagHSENominal, "Perimeter nominal. Avg Temp: %.1f°C.", f.Stats.Mean)
			},
		},
	},
	models.FocusEnergy: {
		{
			name:  "disabled",
			match: always,
			build: func(*Findings) Report { return Report{Tag: TagSystem, Text: EnergyDisabled} },
		},
	},
	models.FocusMaintenance: {
		{name: "health", match: always, build: maintenance},
	},
	models.FocusDiagnostic: {
		{name: "diagnostic", match: always, build: diagnostic},
	},
}

// fallback applies to any focus without a policy.
var fallback = []rule{
	{
		name:  "summary",
		match: always,
		build: func(f *Findings) Report {
			status := "Normal"
			if f.AnomalyCount > 0 {
				status = "Alert"
			}
			return newReport(TagSystem, "ML Analysis Complete. Anomalies: %d. Avg Temp: %.1f°C. Status: %s.",
				f.AnomalyCount, f.Stats.Mean, status)
		},
	},
}

// Generate renders the report for f. Unknown foci use the generic summary.
func Generate(f Findings) Report {
	rules, ok := policies[f.Focus]
	if !ok {
		rules = fallback
	}
	for _, r := range rules {
		if r.match(&f) {
			rep := r.build(&f)
			rep.Rule = r.name
			return rep
		}
	}
	// Every policy ends with an unconditional rule.
	rep := fallback[0].build(&f)
	rep.Rule = fallback[0].name
	return rep
}

// NoOnline is the report for a snapshot without online sensors.
func NoOnline() Report {
	return Report{Tag: TagSystem, Text: NoOnlineSensors, Rule: "no-online"}
}

// MaintenanceScore is 100 minus penalties for anomalies and offline sensors,
// floored at zero.
func MaintenanceScore(anomalies, offline int) int {
	score := 100 - anomalies*AnomalyPenalty - offline*OfflinePenalty
	if score < 0 {
		return 0
	}
	return score
}

// Confidence grows with sensor coverage and shrinks with anomalies. It is
// capped at MaxConfidence but not floored.
func Confidence(online, anomalies int) int {
	c := 50 + online*2 - anomalies*5
	if c > MaxConfidence {
		return MaxConfidence
	}
	return c
}

func maintenance(f *Findings) Report {
	var issues []string
	if f.AnomalyCount > 0 {
		issues = append(issues, "calibration drift")
	}
	if f.OfflineCount > 0 {
		issues = append(issues, "sensor failures")
	}
	if f.Stats.StdDev > VarianceStdDev {
		issues = append(issues, "thermal variance")
	}
	listed := "None"
	if len(issues) > 0 {
		listed = strings.Join(issues, ", ")
	}
	return newReport(TagMaintenance, "Health Score: %d%%. Issues: %s. Anomalies: %d. Schedule maintenance if score < %d.",
		MaintenanceScore(f.AnomalyCount, f.OfflineCount), listed, f.AnomalyCount, MaintenanceHorizon)
}

func diagnostic(f *Findings) Report {
	distribution := "Variable"
	if f.Stats.StdDev < UniformStdDev {
		distribution = "Uniform"
	}
	integrity := "Compromised"
	if f.AnomalyCount == 0 {
		integrity = "Nominal"
	}
	return newReport(TagDiagnosticML, "Confidence: %d%%. Thermal distribution: %s. Anomalies: %d/%d. Trend: %s. Combined ML detection active. System integrity: %s.",
		Confidence(f.OnlineCount, f.AnomalyCount), distribution, f.AnomalyCount, f.OnlineCount, f.Stats.Trend, integrity)
}

func newReport(tag Tag, format string, args ...any) Report {
	return Report{Tag: tag, Text: fmt.Sprintf("[%s] ", tag) + fmt.Sprintf(format, args...)}
}

func always(*Findings) bool { return true }
