package report

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kubilitics/kubilitics-thermal/internal/analytics/stats"
	"github.com/kubilitics/kubilitics-thermal/internal/models"
)

func summary(mean, max, min, std float64, trend stats.Trend) stats.Summary {
	return stats.Summary{Mean: mean, Max: max, Min: min, Range: max - min, StdDev: std, Trend: trend}
}

func TestGenerate_HSE(t *testing.T) {
	tests := []struct {
		name     string
		findings Findings
		tag      Tag
		want     string
	}{
		{
			name: "clustered",
			findings: Findings{Focus: models.FocusHSE, AnomalyCount: 2, ClusterConfirmed: true,
				Stats: summary(40, 95, 21.5, 20, stats.TrendRising)},
			tag:  TagHSECritical,
			want: "[HSE_CRITICAL] Risk Level: HIGH. 2 clustered anomalous signatures detected. Delta T: 73.5°C. Trend: Rising. Immediate investigation required.",
		},
		{
			name: "multiple hot anomalies without cluster",
			findings: Findings{Focus: models.FocusHSE, AnomalyCount: 3,
				Stats: summary(40, 90, 20, 20, stats.TrendStable)},
			tag:  TagHSECritical,
			want: "[HSE_CRITICAL] Risk Level: HIGH. Multiple anomalies detected across sensors. Delta T: 70.0°C. Trend: Stable. Immediate investigation required.",
		},
		{
			name: "multiple anomalies at 85 are advisory",
			findings: Findings{Focus: models.FocusHSE, AnomalyCount: 2,
				Stats: summary(30, 85, 20, 10, stats.TrendStable)},
			tag:  TagHSEAdvisory,
			want: "[HSE_ADVISORY] Risk Level: MEDIUM. 2 anomalous signatures detected (no spatial consensus). Delta T: 65.0°C. Check affected nodes before escalation.",
		},
		{
			name: "hot without anomalies",
			findings: Findings{Focus: models.FocusHSE,
				Stats: summary(30, 71, 20, 10, stats.TrendStable)},
			tag:  TagHSEAdvisory,
			want: "[HSE_ADVISORY] Risk Level: MEDIUM. 0 anomalous signatures detected (no spatial consensus). Delta T: 51.0°C. Check affected nodes before escalation.",
		},
		{
			name: "nominal",
			findings: Findings{Focus: models.FocusHSE,
				Stats: summary(22.04, 23, 21, 0.5, stats.TrendStable)},
			tag:  TagHSENominal,
			want: "[HSE_NOMINAL] Perimeter nominal. Avg Temp: 22.0°C.",
		},
		{
			name: "max exactly 70 is nominal",
			findings: Findings{Focus: models.FocusHSE,
				Stats: summary(45, 70, 20, 25, stats.TrendStable)},
			tag:  TagHSENominal,
			want: "[HSE_NOMINAL] Perimeter nominal. Avg Temp: 45.0°C.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Generate(tt.findings)
			assert.Equal(t, tt.tag, got.Tag)
			assert.Equal(t, tt.want, got.Text)
		})
	}
}

func TestGenerate_EnergyDisabled(t *testing.T) {
	for _, n := range []int{0, 1, 5} {
		got := Generate(Findings{Focus: models.FocusEnergy, AnomalyCount: n, ClusterConfirmed: n > 1,
			Stats: summary(80, 150, 20, 30, stats.TrendRising)})
		assert.Equal(t, EnergyDisabled, got.Text)
		assert.Equal(t, TagSystem, got.Tag)
	}
}

func TestGenerate_Maintenance(t *testing.T) {
	tests := []struct {
		name     string
		findings Findings
		want     string
	}{
		{
			name:     "healthy",
			findings: Findings{Focus: models.FocusMaintenance, Stats: summary(22, 23, 21, 1, stats.TrendStable)},
			want:     "[MAINT_REPORT] Health Score: 100%. Issues: None. Anomalies: 0. Schedule maintenance if score < 70.",
		},
		{
			name:     "one anomaly two offline",
			findings: Findings{Focus: models.FocusMaintenance, AnomalyCount: 1, OfflineCount: 2, Stats: summary(22, 23, 21, 1, stats.TrendStable)},
			want:     "[MAINT_REPORT] Health Score: 45%. Issues: calibration drift, sensor failures. Anomalies: 1. Schedule maintenance if score < 70.",
		},
		{
			name:     "clamped at zero",
			findings: Findings{Focus: models.FocusMaintenance, AnomalyCount: 4, OfflineCount: 3, Stats: summary(40, 120, 20, 12, stats.TrendStable)},
			want:     "[MAINT_REPORT] Health Score: 0%. Issues: calibration drift, sensor failures, thermal variance. Anomalies: 4. Schedule maintenance if score < 70.",
		},
		{
			name:     "variance only",
			findings: Findings{Focus: models.FocusMaintenance, Stats: summary(30, 45, 20, 6, stats.TrendStable)},
			want:     "[MAINT_REPORT] Health Score: 100%. Issues: thermal variance. Anomalies: 0. Schedule maintenance if score < 70.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Generate(tt.findings)
			assert.Equal(t, TagMaintenance, got.Tag)
			assert.Equal(t, tt.want, got.Text)
		})
	}
}

func TestGenerate_Diagnostic(t *testing.T) {
	got := Generate(Findings{Focus: models.FocusDiagnostic, AnomalyCount: 1, OnlineCount: 10,
		Stats: summary(25, 40, 20, 4, stats.TrendFalling)})
	assert.Equal(t, "[DIAG_ML] Confidence: 65%. Thermal distribution: Variable. Anomalies: 1/10. Trend: Falling. Combined ML detection active. System integrity: Compromised.", got.Text)

	got = Generate(Findings{Focus: models.FocusDiagnostic, OnlineCount: 60,
		Stats: summary(22, 23, 21, 0.5, stats.TrendStable)})
	assert.Equal(t, "[DIAG_ML] Confidence: 95%. Thermal distribution: Uniform. Anomalies: 0/60. Trend: Stable. Combined ML detection active. System integrity: Nominal.", got.Text)
}

func TestGenerate_UnknownFocus(t *testing.T) {
	got := Generate(Findings{Focus: "THERMOGRAPHY", AnomalyCount: 2, Stats: summary(31.25, 50, 20, 8, stats.TrendStable)})
	assert.Equal(t, TagSystem, got.Tag)
	assert.Equal(t, "[SYSTEM] ML Analysis Complete. Anomalies: 2. Avg Temp: 31.2°C. Status: Alert.", got.Text)
	assert.Equal(t, "summary", got.Rule)

	got = Generate(Findings{Focus: "energy", Stats: summary(20, 20, 20, 0, stats.TrendStable)})
	assert.Equal(t, "[SYSTEM] ML Analysis Complete. Anomalies: 0. Avg Temp: 20.0°C. Status: Normal.", got.Text)
}

func TestMaintenanceScore(t *testing.T) {
	assert.Equal(t, 100, MaintenanceScore(0, 0))
	assert.Equal(t, 85, MaintenanceScore(1, 0))
	assert.Equal(t, 80, MaintenanceScore(0, 1))
	assert.Equal(t, 10, MaintenanceScore(2, 3))
	assert.Equal(t, 0, MaintenanceScore(7, 0))
	assert.Equal(t, 0, MaintenanceScore(3, 5))
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, 52, Confidence(1, 0))
	assert.Equal(t, 95, Confidence(30, 0))
	assert.Equal(t, 95, Confidence(26, 1))
	assert.Equal(t, 91, Confidence(23, 1))
	assert.Equal(t, 30, Confidence(0, 4))
	assert.Equal(t, -10, Confidence(0, 12))
}

func TestNoOnline(t *testing.T) {
	r := NoOnline()
	assert.Equal(t, NoOnlineSensors, r.Text)
	assert.Equal(t, "[SYSTEM] No online sensors available for analysis.", r.String())
}
