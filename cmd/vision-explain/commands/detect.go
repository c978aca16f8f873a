package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ironsheep/vision-explain/internal/detection"
	"github.com/ironsheep/vision-explain/internal/explain"
	"github.com/ironsheep/vision-explain/internal/imaging"
)

func newDetectCmd(g *globals) *cobra.Command {
	var (
		mf        modelFlags
		threshold float64
	)

	c := &cobra.Command{
		Use:   "detect IMAGE",
		Short: "List the detections the detector reports for an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := mf.apply(g.cfg)
			ex := explain.New(cfg)

			img, err := imaging.NewImageCache().Load(args[0])
			if err != nil {
				return err
			}

			det, err := ex.DefaultDetector(cmd.Context(), mf.numClasses)
			if err != nil {
				return err
			}
			defer det.Close()

			labels, err := ex.Labels(det, nil)
			if err != nil {
				return err
			}

			dets, err := det.Detect(cmd.Context(), img)
			if err != nil {
				return fmt.Errorf("detection failed: %w", err)
			}
			if !cmd.Flags().Changed("threshold") {
				threshold = cfg.Model.ScoreThreshold
			}
			dets = detection.FilterByScore(dets, threshold)
			detection.SortByScore(dets)

			cmd.Printf("%s: %d detections\n", det.Name(), len(dets))
			for i, d := range dets {
				b := d.Bounds
				cmd.Printf("%3d  %-20s %.2f  [%.0f %.0f %.0f %.0f]\n",
					i, detection.LabelName(labels, d.Class), d.Score, b.X1, b.Y1, b.X2, b.Y2)
			}
			return nil
		},
	}

	mf.register(c)
	c.Flags().Float64Var(&threshold, "threshold", 0, "Minimum detection score. Defaults to the configured threshold")
	return c
}
