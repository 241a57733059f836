package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/astra-nvim/astra/internal/config"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	var (
		cfg   config.Config
		lang  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write an astra.json for the current project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.dir()
			if err != nil {
				return err
			}

			target := a.v.GetString("config")
			if target == "" {
				target = filepath.Join(dir, config.LegacyFile)
			} else if target, err = absFrom(a, target); err != nil {
				return err
			}

			if exists, _ := afero.Exists(a.localFs, target); exists && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", target)
			}

			if cfg.Language, err = config.ParseLanguage(lang); err != nil {
				return err
			}
			cfg.Protocol = config.ProtocolSFTP

			// validate the expanded form, save what the user typed so the file stays portable
			check := cfg
			check.LocalPath = config.ExpandLocal(cfg.LocalPath)
			if !filepath.IsAbs(check.LocalPath) {
				check.LocalPath = filepath.Join(filepath.Dir(target), check.LocalPath)
			}
			check.PrivateKeyPath = config.ExpandLocal(cfg.PrivateKeyPath)
			check.RemotePath = config.ExpandRemote(cfg.RemotePath, cfg.Username)
			if err := check.Validate(); err != nil {
				return errors.Join(errors.New("invalid config"), err)
			}

			if err := cfg.Save(a.localFs, target); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green.Render("wrote"), target)
			printConfig(cmd.OutOrStdout(), &check)
			return nil
		},
	}

	f := cmd.Flags()
	f.SortFlags = false
	f.StringVar(&cfg.Host, "host", "", "remote host")
	f.IntVarP(&cfg.Port, "port", "p", config.DefaultPort, "remote port")
	f.StringVarP(&cfg.Username, "user", "u", "", "remote user")
	f.StringVar(&cfg.Password, "password", "", "password (mutually exclusive with --key)")
	f.StringVarP(&cfg.PrivateKeyPath, "key", "k", "", "private key path")
	f.StringVarP(&cfg.RemotePath, "remote", "r", "", "remote root, ~ or ~/ for the remote home")
	f.StringVarP(&cfg.LocalPath, "local", "l", ".", "local root")
	f.StringVar(&lang, "language", "", "message language, e.g. en or zh")
	f.BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}
