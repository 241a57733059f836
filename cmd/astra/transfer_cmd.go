package main

import (
	"errors"
	"path"
	"path/filepath"

	astrasync "github.com/astra-nvim/astra/internal/sync"
	"github.com/spf13/cobra"
)

func newUploadCmd(a *app) *cobra.Command {
	var local, remotePath string

	cmd := &cobra.Command{
		Use:   "upload -l <local> [-r <remote>]",
		Short: "Upload a single file",
		Long: `Upload one file regardless of timestamps. Without --remote the file is placed at
the same relative path under the remote root.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if local == "" {
				return errors.New("--local is required")
			}
			abs, err := absFrom(a, local)
			if err != nil {
				return err
			}

			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.engine.Upload(cmd.Context(), abs, remotePath); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), astrasync.TransferResult(abs))
		},
	}

	cmd.Flags().StringVarP(&local, "local", "l", "", "local file")
	cmd.Flags().StringVarP(&remotePath, "remote", "r", "", "remote destination (default: mirrored path)")
	return cmd
}

func newDownloadCmd(a *app) *cobra.Command {
	var remotePath, local string

	cmd := &cobra.Command{
		Use:   "download -r <remote> [-l <local>]",
		Short: "Download a single file",
		Long: `Download one remote file and give it the remote modification time. Without --local
the file is placed at the same relative path under the local root.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if remotePath == "" {
				return errors.New("--remote is required")
			}

			var abs string
			if local != "" {
				var err error
				if abs, err = absFrom(a, local); err != nil {
					return err
				}
			}

			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			// relative remote paths are taken from the remote root
			if !path.IsAbs(remotePath) {
				remotePath = s.engine.Roots().RemotePath(remotePath)
			}
			if err := s.engine.Download(cmd.Context(), remotePath, abs); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), astrasync.TransferResult(remotePath))
		},
	}

	cmd.Flags().StringVarP(&remotePath, "remote", "r", "", "remote file")
	cmd.Flags().StringVarP(&local, "local", "l", "", "local destination (default: mirrored path)")
	return cmd
}

// absFrom resolves p against the app's working directory.
func absFrom(a *app, p string) (string, error) {
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	dir, err := a.dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, p), nil
}
