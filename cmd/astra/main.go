package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/astra-nvim/astra/internal/utils"
	"github.com/astra-nvim/astra/internal/version"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
)

var (
	home, _       = homedir.Dir()
	appDir        = filepath.Join(home, ".astra")
	defaultLogDir = filepath.Join(appDir, "logs")
)

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "astra",
		Short: "Sync a project with its remote copy over SFTP or FTP",
		Long: `astra keeps a local project and a remote directory in step.

The endpoint is read from .astra-settings/settings.toml, .vscode/sftp.json or
astra.json, searched upward from the working directory.`,
		Version:       version.Detailed(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.bindFlags(cmd)
		},
	}

	cmd.PersistentFlags().StringP("config", "c", "", "config file or project directory (default: discover from cwd)")
	cmd.PersistentFlags().String("journal", filepath.Join(appDir, "journal.db"), "fingerprint journal database")
	cmd.PersistentFlags().Bool("no-journal", false, "compare timestamps only")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging on the console")

	cmd.AddCommand(
		newSyncCmd(a),
		newStatusCmd(a),
		newUploadCmd(a),
		newDownloadCmd(a),
		newConfigTestCmd(a),
		newInitCmd(a),
		newServeCmd(a),
		newTaskCmd(a),
		newVersionCmd(),
	)
	return cmd
}

// bindFlags lets every flag of the running command be set as ASTRA_<FLAG>, e.g. ASTRA_CONFIG
// or ASTRA_NO_JOURNAL. Flags given on the command line win.
func (a *app) bindFlags(cmd *cobra.Command) error {
	a.v.SetEnvPrefix("ASTRA")
	a.v.SetEnvKeyReplacer(envKeyReplacer)
	a.v.AutomaticEnv()

	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if a.v.GetBool("verbose") {
		consoleLevel.Set(slog.LevelDebug)
	}
	return nil
}

// consoleLevel starts at Info; --verbose lowers it once flags are parsed.
var consoleLevel = new(slog.LevelVar)

func setupLogging(logFile string) (io.Closer, error) {
	if err := utils.EnsureParent(logFile); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	// stdout carries command output (JSON for sync), so the console log goes to stderr
	consoleHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      consoleLevel,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(consoleHandler, fileHandler)))
	return file, nil
}

func main() {
	logFile, err := setupLogging(filepath.Join(defaultLogDir, "astra.log"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(newApp()).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", red.Render("ERROR"), err)
		stop()
		logFile.Close()
		os.Exit(1)
	}
}
