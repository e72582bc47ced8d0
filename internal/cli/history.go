package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/kubilitics/kubilitics-thermal/internal/db"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit   int
		tag     string
		focus   string
		source  string
		since   time.Duration
		asJSON  bool
		summary bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show stored analysis reports",
		Long: `List reports from the history database, newest first.

Examples:

  thermal history --limit 20
  thermal history --tag HSE_CRITICAL --since 24h
  thermal history --summary`,
		GroupID: "analysis",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.Database.Enabled {
				return fmt.Errorf("report history is disabled (database.enabled=false)")
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			var from time.Time
			if since > 0 {
				from = time.Now().Add(-since)
			}
			out := cmd.OutOrStdout()

			if summary {
				tags, err := store.TagSummary(cmd.Context(), from, time.Time{})
				if err != nil {
					return err
				}
				sensors, err := store.SensorAnomalyCounts(cmd.Context(), 10)
				if err != nil {
					return err
				}
				if asJSON {
					return json.NewEncoder(out).Encode(map[string]interface{}{"tags": tags, "topSensors": sensors})
				}
				printCounts(out, "TAG", tags)
				fmt.Fprintln(out)
				printCounts(out, "SENSOR", sensors)
				return nil
			}

			reports, err := store.QueryReports(cmd.Context(), db.ReportQuery{
				Tag:    tag,
				Focus:  focus,
				Source: source,
				From:   from,
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			if asJSON {
				if reports == nil {
					reports = []*db.ReportRecord{}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(reports)
			}
			printReports(out, reports)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "maximum reports to show")
	cmd.Flags().StringVar(&tag, "tag", "", "filter by report tag")
	cmd.Flags().StringVar(&focus, "focus", "", "filter by focus")
	cmd.Flags().StringVar(&source, "source", "", "filter by source (http, kafka, cli, simulation)")
	cmd.Flags().DurationVar(&since, "since", 0, "only reports newer than this")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&summary, "summary", false, "print counts per tag and most-flagged sensors")
	return cmd
}

func printReports(w io.Writer, reports []*db.ReportRecord) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "No reports.")
		return
	}
	fmt.Fprintf(w, "%-20s  %-12s  %-11s  %-9s  %s\n", "ANALYZED", "TAG", "FOCUS", "ANOMALIES", "REPORT")
	for _, r := range reports {
		fmt.Fprintf(w, "%-20s  %-12s  %-11s  %-9d  %s\n",
			r.AnalyzedAt.Local().Format("2006-01-02 15:04:05"), r.Tag, r.Focus, r.AnomalyCount, r.Report)
	}
}

func printCounts(w io.Writer, header string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	fmt.Fprintf(w, "%-24s  %s\n", header, "COUNT")
	for _, k := range keys {
		fmt.Fprintf(w, "%-24s  %d\n", k, counts[k])
	}
}
