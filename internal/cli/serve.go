package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/gops/agent"
	"github.com/spf13/cobra"
	"github.com/viant/afs/url"

	"qahub/internal/log"
	"qahub/internal/server"
	"qahub/internal/session"
	"qahub/internal/source"
	"qahub/internal/watch"
)

var (
	serveAddr  string
	serveDocs  []string
	serveWatch bool
	serveGops  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve the JSON API for uploading documents and asking questions.

With --watch the single --docs directory is re-indexed whenever files in it
change.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
	serveCmd.Flags().StringSliceVar(&serveDocs, "docs", nil, "files, directories or storage URLs to index")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "re-index the --docs directory when it changes")
	serveCmd.Flags().BoolVar(&serveGops, "gops", false, "start the gops diagnostics agent")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var watchDir string
	if serveWatch {
		dir, err := watchDirectory(serveDocs)
		if err != nil {
			return err
		}
		watchDir = dir
	}

	// the watched directory is loaded by the reloader below
	docs := serveDocs
	if watchDir != "" {
		docs = nil
	}
	a, err := buildApp(ctx, cmd.ErrOrStderr(), docs)
	if err != nil {
		return err
	}
	defer a.Session.Close()

	if serveGops {
		if err := agent.Listen(agent.Options{ShutdownCleanup: true}); err != nil {
			a.Logger.Warn("gops agent failed", "error", err)
		} else {
			defer agent.Close()
		}
	}

	if watchDir != "" {
		r := &reloader{
			loader:   source.NewLoader(a.Converter.Supports),
			sess:     a.Session,
			location: watchDir,
			logger:   a.Logger.With("component", "watch"),
		}
		if err := r.Reload(ctx); err != nil {
			return err
		}
		w := &watch.Watcher{Dir: watchDir, Reload: r.Reload, Logger: r.logger}
		go func() {
			if err := w.Run(ctx); err != nil {
				r.logger.Error("watcher stopped", "error", err)
			}
		}()
	}

	addr := serveAddr
	if addr == "" {
		addr = a.Config.Server.Addr
	}
	return server.NewAPI(a.Session, a.Logger.With("component", "http")).Run(ctx, addr)
}

// watchDirectory returns the local directory --watch applies to.
func watchDirectory(docs []string) (string, error) {
	if len(docs) != 1 {
		return "", errors.New("--watch needs exactly one --docs directory")
	}
	loc := docs[0]
	if scheme := url.Scheme(loc, ""); scheme != "" && scheme != "file" {
		return "", fmt.Errorf("--watch needs a local directory, got %s", loc)
	}
	norm, err := source.Normalize(loc)
	if err != nil {
		return "", err
	}
	dir := url.Path(norm)
	info, err := os.Stat(dir)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("--watch needs a directory, got %s", loc)
	}
	return dir, nil
}

// reloader re-ingests a location when its content fingerprint changes.
type reloader struct {
	loader   *source.Loader
	sess     *session.Session
	location string
	logger   *log.Logger

	last   uint64
	loaded bool
}

func (r *reloader) Reload(ctx context.Context) error {
	files, err := r.loader.Load(ctx, r.location)
	if err != nil {
		return err
	}
	fp, err := source.Fingerprint(files)
	if err != nil {
		return err
	}
	if r.loaded && fp == r.last {
		r.logger.Debug("documents unchanged", "location", r.location)
		return nil
	}
	report, err := r.sess.Ingest(ctx, files)
	if err != nil {
		return err
	}
	for _, f := range report.Failed {
		r.logger.Warn("skipped file", "file", f.Name, "error", f.Err)
	}
	r.last, r.loaded = fp, true
	r.logger.Info("documents reloaded", "location", r.location, "documents", len(report.Documents))
	return nil
}
