package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/harun/memindex/internal/observability"
	"github.com/harun/memindex/pkg/memory"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var watchEmbed bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the index current while notes change",
	Long: `Watch the notes directory and re-index each markdown note shortly after it
is written. When watch.rebuild_schedule is set, a full rebuild also runs on that
cron schedule. When watch.metrics_addr is set, Prometheus metrics are served on
/metrics alongside a /healthz probe.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchEmbed, "embed", false, "generate description embeddings")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	embedder, err := a.optionalEmbedder(watchEmbed)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(commandContext(cmd))
	logger := a.logger.With().Str("component", "watch").Logger()

	watcher, err := memory.NewNoteWatcher(a.logger, a.cfg.Watch.Debounce, func(path string) {
		if _, err := a.store.Upsert(ctx, path, memory.UpsertOptions{Embedder: embedder}); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Failed to update note")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Stop()

	if err := watcher.Watch(a.cfg.NotesDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", a.cfg.NotesDir, err)
	}

	if spec := a.cfg.Watch.RebuildSchedule; spec != "" {
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(spec, func() {
			if _, err := a.store.Rebuild(ctx, memory.RebuildOptions{Embedder: embedder}); err != nil {
				logger.Error().Err(err).Msg("Scheduled rebuild failed")
			}
		}); err != nil {
			return fmt.Errorf("invalid rebuild schedule: %w", err)
		}
		scheduler.Start()
		g.Go(func() error {
			<-ctx.Done()
			<-scheduler.Stop().Done()
			return nil
		})
		logger.Info().Str("schedule", spec).Msg("Scheduled full rebuilds")
	}

	if addr := a.cfg.Watch.MetricsAddr; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           newMetricsRouter(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		logger.Info().Str("addr", addr).Msg("Serving metrics")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl+C to stop)\n", a.cfg.NotesDir)

	g.Go(func() error {
		<-ctx.Done()
		return watcher.Stop()
	})

	return g.Wait()
}

func newMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", observability.MetricsHandler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}
