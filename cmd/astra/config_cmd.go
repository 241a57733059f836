package main

import (
	"fmt"
	"io"

	"github.com/astra-nvim/astra/internal/config"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newConfigTestCmd(a *app) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "config-test",
		Short: "Resolve the config and check that the remote is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), cfg)

			if offline {
				return nil
			}

			store, err := a.dialer.Dial(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), cfg.RemotePath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s %s reachable, %s entries in %s\n",
				green.Render("OK"), cfg.Addr(), humanize.Comma(int64(len(entries))), cfg.RemotePath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "only resolve and validate, do not connect")
	return cmd
}

func printConfig(w io.Writer, cfg *config.Config) {
	r := cfg.Redacted()

	auth := "password " + r.Password
	if r.PrivateKeyPath != "" {
		auth = "key " + r.PrivateKeyPath
	}

	rows := [][2]string{
		{"source", r.Source},
		{"format", string(r.Format)},
		{"protocol", r.Protocol},
		{"host", r.Addr()},
		{"user", r.Username},
		{"auth", auth},
		{"remote", r.RemotePath},
		{"local", r.LocalPath},
	}
	if r.Name != "" {
		rows = append([][2]string{{"name", r.Name}}, rows...)
	}
	if r.Language != "" {
		rows = append(rows, [2]string{"language", r.Language.String()})
	}
	if r.UploadOnSave {
		rows = append(rows, [2]string{"upload", "on save"})
	}

	for _, row := range rows {
		fmt.Fprintf(w, "%-9s %s\n", gray.Render(row[0]), cyan.Render(row[1]))
	}
}
