package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Upload local changes and download remote-only files",
		Long: `Scan both sides, upload files that are new or newer locally, download files that
only exist remotely, and print the result as JSON. Nothing is ever deleted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			unlock, err := acquireSyncLock(lockPath(a.dataDir, s.cfg))
			if err != nil {
				return err
			}
			defer unlock()

			result, err := s.engine.Run(cmd.Context())
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}

			if !result.Success {
				return fmt.Errorf("%d transfer(s) failed", len(result.Errors))
			}
			return nil
		},
	}
}
