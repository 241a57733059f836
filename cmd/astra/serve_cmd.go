package main

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"time"

	"github.com/astra-nvim/astra/internal/config"
	"github.com/astra-nvim/astra/internal/controlplane"
	astrasync "github.com/astra-nvim/astra/internal/sync"
	"github.com/astra-nvim/astra/internal/tasks"
	"github.com/astra-nvim/astra/internal/utils"
	"github.com/astra-nvim/astra/internal/version"
	"github.com/astra-nvim/astra/internal/watcher"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run background sync tasks behind a local HTTP API",
		Long: `Start the task orchestrator and its control plane. Editors submit uploads and syncs
over HTTP (or through "astra task") and poll for the result. With --watch, or
uploadOnSave in the config, every saved file under the local root is uploaded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.SortFlags = false
	f.StringP("addr", "a", controlplane.DefaultAddr, "control plane listen address")
	f.StringP("token", "t", "", "control plane token (default: generate and write to ~/.astra/token)")
	f.Bool("no-auth", false, "serve without a token")
	f.Int("workers", tasks.DefaultWorkers, "concurrent tasks")
	f.BoolP("watch", "w", false, "upload files as they are saved")
	f.Duration("max-age", time.Hour, "forget finished tasks after this long")
	f.Duration("cleanup-interval", 10*time.Minute, "how often finished tasks are swept")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	slog.Info("astra serve", "version", version.Version, "revision", version.Revision)

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	journal, err := a.openJournal()
	if err != nil {
		return err
	}
	defer closeJournal(journal)

	token := ""
	if !a.v.GetBool("no-auth") {
		if token, err = ensureToken(a.dataDir, a.v.GetString("token")); err != nil {
			return err
		}
	}

	var w *watcher.Watcher
	if a.v.GetBool("watch") || cfg.UploadOnSave {
		ignore := astrasync.NewIgnoreList(a.localFs, cfg.LocalPath)
		ignore.Load()
		w = watcher.New(cfg.LocalPath, watcher.WithFilter(watcher.IgnoreFilter(cfg.LocalPath, ignore)))
	}

	opts := []tasks.SyncExecutorOption{tasks.WithExecutorLocalFs(a.localFs)}
	if journal != nil {
		opts = append(opts, tasks.WithExecutorJournal(journal))
	}
	var exec tasks.Executor = tasks.NewSyncExecutor(cfg, a.dialer, opts...)
	if w != nil {
		exec = suppressDownloadEcho(cfg, w, exec)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	manager := tasks.NewManager(exec, tasks.WithWorkers(a.v.GetInt("workers")))
	manager.Start(ctx)

	server := controlplane.NewServer(&controlplane.Config{
		Addr:      a.v.GetString("addr"),
		AuthToken: token,
	}, manager)
	slog.Info("control plane", "addr", server.Addr(), "token", utils.MaskSecret(token), "endpoint", cfg.Endpoint())

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return server.Start(ctx)
	})
	eg.Go(func() error {
		sweepTasks(ctx, manager, a.v.GetDuration("cleanup-interval"), a.v.GetDuration("max-age"))
		return nil
	})
	if w != nil {
		if err := w.Start(ctx); err != nil {
			cancel()
			eg.Wait()
			manager.Wait()
			return err
		}
		eg.Go(func() error {
			watcher.UploadOnSave(w, a.localFs, manager)
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			w.Stop()
			return nil
		})
	}

	err = eg.Wait()
	cancel()
	manager.Wait()
	slog.Info("Bye!")

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func sweepTasks(ctx context.Context, m *tasks.Manager, interval, maxAge time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Cleanup(maxAge); n > 0 {
				slog.Info("task cleanup", "removed", n)
			}
		}
	}
}

// suppressDownloadEcho keeps a file fetched by a download task from being uploaded
// straight back by the watcher.
func suppressDownloadEcho(cfg *config.Config, w *watcher.Watcher, next tasks.Executor) tasks.Executor {
	roots := astrasync.Roots{Local: cfg.LocalPath, Remote: cfg.RemotePath}
	return tasks.ExecutorFunc(func(ctx context.Context, req tasks.Request) (*astrasync.SyncResult, error) {
		if dl, ok := req.(tasks.FileDownloadRequest); ok {
			local := dl.LocalPath
			if local == "" {
				if rel, inRoot := roots.RemoteRel(path.Clean(dl.RemotePath)); inRoot {
					local = roots.LocalPath(rel)
				}
			}
			if local != "" {
				w.IgnoreOnce(local)
			}
		}
		return next.Execute(ctx, req)
	})
}
