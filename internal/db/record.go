package db

import "github.com/kubilitics/kubilitics-thermal/internal/analytics"

// FromResult flattens an analysis result into a history record.
func FromResult(source string, r *analytics.Result) *ReportRecord {
	sensors := r.AnomalySensors
	if sensors == nil {
		sensors = []string{}
	}
	return &ReportRecord{
		ID:               r.ID,
		Source:           source,
		Focus:            string(r.Focus),
		Tag:              string(r.Tag),
		Rule:             r.Rule,
		Report:           r.Report,
		AnomalyCount:     r.AnomalyCount,
		AnomalySensors:   sensors,
		ClusterConfirmed: r.ClusterConfirmed,
		OnlineCount:      r.OnlineCount,
		OfflineCount:     r.OfflineCount,
		MeanTemp:         r.Stats.Mean,
		MaxTemp:          r.Stats.Max,
		MinTemp:          r.Stats.Min,
		StdDevTemp:       r.Stats.StdDev,
		Trend:            string(r.Stats.Trend),
		AnalyzedAt:       r.AnalyzedAt,
	}
}
