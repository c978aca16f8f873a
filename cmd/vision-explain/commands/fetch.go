package commands

import (
	"os"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/ironsheep/vision-explain/internal/assets"
)

func newFetchModelCmd(g *globals) *cobra.Command {
	var (
		force bool
		url   string
		path  string
	)

	c := &cobra.Command{
		Use:   "fetch-model",
		Short: "Download the configured ONNX model into the models directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *g.cfg
			if url != "" {
				cfg.Model.URL = url
			}
			if path != "" {
				cfg.Model.Path = path
			}
			dest := cfg.ModelPath()

			got, err := assets.Download(cmd.Context(), cfg.Model.URL, dest, force || cfg.Model.ForceDownload)
			if err != nil {
				return err
			}

			info, err := os.Stat(got)
			if err != nil {
				return err
			}
			cmd.Printf("%s (%s)\n", got, units.HumanSize(float64(info.Size())))
			return nil
		},
	}

	c.Flags().BoolVarP(&force, "force", "f", false, "Download even if the model file already exists")
	c.Flags().StringVar(&url, "url", "", "Model URL. Defaults to model.url from the config")
	c.Flags().StringVar(&path, "path", "", "Destination file. Relative paths resolve under storage.models_dir")
	return c
}
