package commands

import (
	"fmt"
	"image"
	"os"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/ironsheep/vision-explain/internal/config"
	"github.com/ironsheep/vision-explain/internal/explain"
)

// modelFlags are shared by the commands that build a detector.
type modelFlags struct {
	backend    string
	model      string
	numClasses int
}

func (f *modelFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.backend, "backend", "", "Detector backend (contour, onnx, ocr). Defaults to the configured backend")
	cmd.Flags().StringVar(&f.model, "model", "", "Path to an ONNX model. Implies --backend onnx")
	cmd.Flags().IntVar(&f.numClasses, "num-classes", 0, "Class count of the detector. Defaults to the configured value")
}

// apply returns a copy of cfg with the flags applied.
func (f *modelFlags) apply(cfg *config.Config) *config.Config {
	out := *cfg
	if f.model != "" {
		out.Model.Path = f.model
		out.Model.Backend = config.BackendONNX
	}
	if f.backend != "" {
		out.Model.Backend = f.backend
	}
	return &out
}

func newExplainCmd(g *globals) *cobra.Command {
	var (
		mf         modelFlags
		savePrefix string
		maxFigures int
		numMasks   int
		maskRes    []int
		padding    int
		workers    int
		seed       int64
		threshold  float64
	)

	c := &cobra.Command{
		Use:   "explain IMAGE",
		Short: "Render a DRISE saliency map for every detection in an image",
		Long: `Runs the detector on IMAGE and writes one heatmap per detection to
PREFIX0.jpg, PREFIX1.jpg, ... The prefix is used verbatim, so --save out/cat_
produces out/cat_0.jpg.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := explain.Request{
				ImagePath:   args[0],
				NumClasses:  mf.numClasses,
				SavePrefix:  savePrefix,
				MaxFigures:  maxFigures,
				NumMasks:    numMasks,
				MaskPadding: padding,
				Workers:     workers,
				Seed:        seed,
			}
			if cmd.Flags().Changed("threshold") {
				req.ScoreThreshold = &threshold
			}
			switch len(maskRes) {
			case 0:
			case 1:
				req.MaskRes = image.Pt(maskRes[0], maskRes[0])
			case 2:
				req.MaskRes = image.Pt(maskRes[0], maskRes[1])
			default:
				return fmt.Errorf("--mask-res takes one or two values, got %d", len(maskRes))
			}

			res, err := explain.New(mf.apply(g.cfg)).GetSaliencyMap(cmd.Context(), req)
			if err != nil {
				return err
			}
			printResult(cmd, res)
			return nil
		},
	}

	mf.register(c)
	c.Flags().StringVarP(&savePrefix, "save", "s", "", "Output prefix; figure i is written to PREFIX+i+.jpg")
	c.Flags().IntVarP(&maxFigures, "max-figures", "n", 0, "Maximum number of detections to explain (0 = config value, which defaults to all)")
	c.Flags().IntVar(&numMasks, "num-masks", 0, "Number of random masks")
	c.Flags().IntSliceVar(&maskRes, "mask-res", nil, "Mask grid as COLS[,ROWS]")
	c.Flags().IntVar(&padding, "padding", 0, "Extra pixels around the upsampled mask before the random shift")
	c.Flags().IntVar(&workers, "workers", 0, "Concurrent detector calls (0 = one per CPU)")
	c.Flags().Int64Var(&seed, "seed", 0, "Mask sampling seed (0 = config value, else time based)")
	c.Flags().Float64Var(&threshold, "threshold", 0, "Minimum detection score. Defaults to the configured threshold")
	return c
}

func printResult(cmd *cobra.Command, res *explain.Result) {
	if len(res.Figures) == 0 {
		cmd.Println("No detections to explain.")
		return
	}

	cmd.Printf("Explained %d of %d detections with %d masks in %s (seed %d)\n",
		len(res.Figures), len(res.Detections), res.Stats.Masks, res.Stats.WallTime.Round(1e6), res.Seed)
	for i, fig := range res.Figures {
		line := fmt.Sprintf("%3d  %-20s %.2f", i, fig.Label, fig.Detection.Score)
		if i < len(res.Paths) {
			line += "  " + res.Paths[i]
			if info, err := os.Stat(res.Paths[i]); err == nil {
				line += " (" + units.HumanSize(float64(info.Size())) + ")"
			}
		}
		cmd.Println(line)
	}
}
