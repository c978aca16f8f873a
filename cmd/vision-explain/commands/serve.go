package commands

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironsheep/vision-explain/internal/config"
	"github.com/ironsheep/vision-explain/internal/server"
)

func newServeCmd(g *globals) *cobra.Command {
	var watch bool

	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools over stdin and stdout",
		Long: `Starts an MCP (Model Context Protocol) server on stdin/stdout. Logs go to
stderr. With --watch the config file is reloaded whenever it changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := server.New(g.cfg).WithVersion(g.build.Version)

			if watch {
				w, err := watchConfig(g.configPath, srv)
				if err != nil {
					return err
				}
				if w != nil {
					defer w.Close()
				}
			}

			slog.Info("MCP server starting", "version", g.build.Version, "backend", g.cfg.Model.Backend)
			return srv.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	c.Flags().BoolVar(&watch, "watch", true, "Reload the config file when it changes")
	return c
}

// watchConfig pushes every successful reload of path into srv. A missing config file
// is not watched.
func watchConfig(path string, srv *server.Server) (*config.Watcher, error) {
	if _, err := os.Stat(config.ExpandPath(path)); errors.Is(err, fs.ErrNotExist) {
		slog.Debug("No config file to watch", "path", path)
		return nil, nil
	}

	w, err := config.NewWatcher(path, func(cfg *config.Config, err error) {
		if err != nil {
			slog.Error("Keeping previous config", "error", err)
			return
		}
		srv.SetConfig(cfg)
	})
	if err != nil {
		return nil, err
	}
	srv.SetConfig(w.Snapshot())
	return w, nil
}
