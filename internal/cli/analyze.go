package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kubilitics/kubilitics-thermal/internal/heatmap"
	"github.com/kubilitics/kubilitics-thermal/internal/models"
	"github.com/kubilitics/kubilitics-thermal/internal/pipeline"
	"github.com/kubilitics/kubilitics-thermal/internal/simulation"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		focus  string
		asJSON bool
		record bool
	)
	cmd := &cobra.Command{
		Use:   "analyze [file|-]",
		Short: "Analyze one sensor snapshot and print the report",
		Long: `Analyze one JSON sensor snapshot and print the one-line report.

The snapshot is read from the given file, or from stdin when the argument is
"-" or omitted:

  {"sensors":[{"status":"online","temperature":22.4,"humidity":41,"x":-10,"y":1,"z":-5}],
   "status":{"analysisFocus":"HSE"}}

Malformed input exits with status 1.

Examples:

  thermal analyze snapshot.json
  cat snapshot.json | thermal analyze --focus MAINTENANCE
  thermal analyze snapshot.json --json --record`,
		GroupID: "analysis",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.readInput(args)
			if err != nil {
				return err
			}
			req, err := models.ParseAnalysisRequest(data)
			if err != nil {
				return err
			}
			if focus != "" {
				req.Status.AnalysisFocus = models.Focus(focus)
			}

			p, closeFn, err := a.newPipeline(record)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := p.Process(cmd.Context(), pipeline.SourceCLI, req)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Report)
			return nil
		},
	}
	cmd.Flags().StringVar(&focus, "focus", "", "override the snapshot's analysis focus (HSE, ENERGY, MAINTENANCE, DIAGNOSTIC)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	cmd.Flags().BoolVar(&record, "record", false, "store the result in the report history")
	return cmd
}

func newHeatmapCmd(a *app) *cobra.Command {
	var (
		output   string
		asBase64 bool
		simulate string
		ticks    int
	)
	cmd := &cobra.Command{
		Use:   "heatmap [file|-]",
		Short: "Render a top-down thermal image of a snapshot",
		Long: `Render the IDW-interpolated floor-plan heatmap of a snapshot as PNG.

Use --simulate to render the built-in hall after a number of simulator ticks
instead of reading a snapshot.

Examples:

  thermal heatmap snapshot.json -o hall.png
  thermal heatmap snapshot.json --base64
  thermal heatmap --simulate LocalizedFire --ticks 5 -o fire.png`,
		GroupID: "analysis",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sensors []models.SensorReading
			if simulate != "" {
				mode, err := simulation.ParseMode(simulate)
				if err != nil {
					return err
				}
				sim := simulation.NewSimulator(a.cfg.Simulation.Seed, a.logger("simulation"))
				sim.SetMode(mode)
				for i := 0; i < ticks; i++ {
					sim.Step()
				}
				sensors = sim.Sensors()
			} else {
				data, err := a.readInput(args)
				if err != nil {
					return err
				}
				req, err := models.ParseAnalysisRequest(data)
				if err != nil {
					return err
				}
				sensors = req.Sensors
			}

			renderer := heatmap.NewRenderer(heatmap.Options{
				Columns:      a.cfg.Heatmap.Columns,
				Rows:         a.cfg.Heatmap.Rows,
				CellSize:     a.cfg.Heatmap.CellSize,
				MarkerRadius: a.cfg.Heatmap.MarkerRadius,
			})

			if asBase64 || output == "" {
				b64, err := renderer.Base64(sensors)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), b64)
				return nil
			}

			png, err := renderer.PNG(sensors)
			if err != nil {
				return err
			}
			if png == nil {
				return fmt.Errorf("no sensors to render")
			}
			if err := os.WriteFile(output, png, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", output, len(png))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the PNG to this file")
	cmd.Flags().BoolVar(&asBase64, "base64", false, "print the PNG as base64 (default when no --output)")
	cmd.Flags().StringVar(&simulate, "simulate", "", "render the simulated hall in this mode")
	cmd.Flags().IntVar(&ticks, "ticks", 0, "simulator ticks to advance before rendering")
	return cmd
}
