package main

import (
	"fmt"
	"io"

	astrasync "github.com/astra-nvim/astra/internal/sync"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show what the next sync would transfer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			plan, err := s.engine.Plan(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), plan)
			}
			printPlan(cmd.OutOrStdout(), s.cfg.Endpoint(), s.engine.Roots(), plan)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the plan as JSON")
	return cmd
}

func printPlan(w io.Writer, endpoint string, roots astrasync.Roots, plan *astrasync.Plan) {
	fmt.Fprintf(w, "%s %s\n", gray.Render("remote"), cyan.Render(endpoint))
	fmt.Fprintf(w, "%s  %s\n\n", gray.Render("local"), cyan.Render(roots.Local))

	if len(plan.Operations) == 0 {
		fmt.Fprintln(w, green.Render("Everything up to date"))
		return
	}

	var uploads, downloads int
	var bytes uint64
	for _, op := range plan.Operations {
		var label string
		switch op.Type {
		case astrasync.OpUpload:
			uploads++
			label = green.Render("upload  ")
		case astrasync.OpDownload:
			downloads++
			label = yellow.Render("download")
		case astrasync.OpDelete:
			label = red.Render("delete  ")
		case astrasync.OpCreateDirectory:
			label = cyan.Render("mkdir   ")
		}
		if op.Size > 0 {
			bytes += uint64(op.Size)
		}
		fmt.Fprintf(w, "  %s  %s %s\n", label, op.RelPath, gray.Render(humanize.Bytes(uint64(max(op.Size, 0)))))
	}

	fmt.Fprintf(w, "\n%s to upload, %s to download (%s), %s up to date\n",
		bold.Render(humanize.Comma(int64(uploads))),
		bold.Render(humanize.Comma(int64(downloads))),
		humanize.Bytes(bytes),
		humanize.Comma(int64(len(plan.Skipped))),
	)
}
