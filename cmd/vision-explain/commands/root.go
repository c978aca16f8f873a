// Package commands implements the vision-explain command line.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ironsheep/vision-explain/internal/config"
	"github.com/ironsheep/vision-explain/internal/envvar"
	"github.com/ironsheep/vision-explain/internal/logger"
)

// BuildInfo is reported by the version command and the MCP handshake.
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// globals holds state shared by every subcommand once the root pre-run has loaded
// the configuration.
type globals struct {
	configPath string
	logLevel   string
	logToFile  bool

	cfg   *config.Config
	build BuildInfo
}

// defaultConfigFile returns $VISION_EXPLAIN_CONFIG or the per-user config file.
func defaultConfigFile() string {
	if p := os.Getenv(envvar.VisionExplainConfig); p != "" {
		return p
	}
	return filepath.Join(config.DefaultConfigPath(), config.DefaultConfigFile)
}

// NewRootCmd builds the vision-explain command tree.
func NewRootCmd(build BuildInfo) *cobra.Command {
	g := &globals{build: build}

	root := &cobra.Command{
		Use:   "vision-explain",
		Short: "Explain object detector predictions with DRISE saliency maps",
		Long: `vision-explain runs an object detector on an image and shows, for each
detection, which pixels the detector relied on. Saliency is estimated with DRISE:
the detector is rerun on randomly masked copies of the image and every mask is
weighted by how well the masked detections still match the original ones.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.setup(cmd)
		},
	}

	root.SetOut(os.Stdout)
	root.PersistentFlags().StringVar(&g.configPath, "config", defaultConfigFile(), "Path to config file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error). Overrides the config file")
	root.PersistentFlags().BoolVar(&g.logToFile, "log-to-file", false, "Also write JSON logs to the configured log file")

	root.AddCommand(
		newExplainCmd(g),
		newDetectCmd(g),
		newFetchModelCmd(g),
		newServeCmd(g),
		newVersionCmd(g),
	)
	return root
}

func (g *globals) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	g.cfg = cfg

	levelName := cfg.Log.Level
	if g.logLevel != "" {
		levelName = g.logLevel
	}
	level, err := logger.ParseLevel(levelName)
	if err != nil {
		return err
	}

	opts := []logger.Option{
		logger.WithLevel(level),
		logger.WithConsole(cmd.ErrOrStderr()),
		logger.WithLogToFile(g.logToFile || cfg.Log.File != ""),
	}
	if cfg.Log.File != "" {
		opts = append(opts, logger.WithLogFile(config.ExpandPath(cfg.Log.File)))
	}
	slog.SetDefault(logger.New(envvar.FromEnv(), opts...))

	slog.Debug("Configuration loaded", "config", g.configPath, "backend", cfg.Model.Backend)
	return nil
}
