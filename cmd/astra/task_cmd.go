package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/astra-nvim/astra/internal/controlplane"
	astrasync "github.com/astra-nvim/astra/internal/sync"
	"github.com/astra-nvim/astra/internal/taskclient"
	"github.com/astra-nvim/astra/internal/tasks"
	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newTaskCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Talk to a running astra serve",
	}

	cmd.PersistentFlags().StringP("addr", "a", controlplane.DefaultAddr, "control plane address")
	cmd.PersistentFlags().StringP("token", "t", "", "control plane token (default: read ~/.astra/token)")

	cmd.AddCommand(
		newTaskSubmitCmd(a),
		newTaskListCmd(a),
		newTaskGetCmd(a),
		newTaskCancelCmd(a),
		newTaskCleanupCmd(a),
	)
	return cmd
}

func (a *app) taskClient() (*taskclient.Client, error) {
	token, err := readToken(a.dataDir, a.v.GetString("token"))
	if err != nil {
		return nil, err
	}
	return taskclient.New(taskclient.BaseURL(a.v.GetString("addr")), token), nil
}

func newTaskSubmitCmd(a *app) *cobra.Command {
	var (
		opsFile string
		wait    bool
	)

	cmd := &cobra.Command{
		Use:   "submit <full|upload|download> [path] [destination]",
		Short: "Queue a task and print its id",
		Example: `  astra task submit full
  astra task submit upload src/main.go
  astra task submit download /srv/www/index.html
  astra task submit ops --file ops.json`,
		Args: cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := a.buildRequest(args, opsFile, cmd.InOrStdin())
			if err != nil {
				return err
			}

			client, err := a.taskClient()
			if err != nil {
				return err
			}

			id, err := client.Submit(cmd.Context(), req)
			if err != nil {
				return err
			}
			if !wait {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), id)
				return err
			}

			task, err := client.Wait(cmd.Context(), id, 200*time.Millisecond)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), task)
		},
	}

	cmd.Flags().StringVarP(&opsFile, "file", "f", "", "operations JSON for ops tasks (- for stdin)")
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the task and print it")
	return cmd
}

func (a *app) buildRequest(args []string, opsFile string, stdin io.Reader) (tasks.Request, error) {
	kind := strings.ToLower(args[0])
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}

	switch kind {
	case "full", "sync":
		return tasks.FullSyncRequest{}, nil
	case "upload":
		if arg(1) == "" {
			return nil, errors.New("upload needs a local path")
		}
		local, err := absFrom(a, arg(1))
		if err != nil {
			return nil, err
		}
		return tasks.FileUploadRequest{LocalPath: local, RemotePath: arg(2)}, nil
	case "download":
		if arg(1) == "" {
			return nil, errors.New("download needs a remote path")
		}
		req := tasks.FileDownloadRequest{RemotePath: arg(1)}
		if arg(2) != "" {
			local, err := absFrom(a, arg(2))
			if err != nil {
				return nil, err
			}
			req.LocalPath = local
		}
		return req, nil
	case "ops":
		ops, err := readOperations(opsFile, stdin)
		if err != nil {
			return nil, err
		}
		return tasks.OperationsRequest{Operations: ops}, nil
	default:
		return nil, fmt.Errorf("unknown task kind %q, want full, upload, download or ops", args[0])
	}
}

func readOperations(file string, stdin io.Reader) ([]astrasync.SyncOperation, error) {
	if file == "" {
		return nil, errors.New("ops needs --file")
	}

	var data []byte
	var err error
	if file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, err
	}

	var ops []astrasync.SyncOperation
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}
	return ops, nil
}

func newTaskListCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.taskClient()
			if err != nil {
				return err
			}

			list, err := client.List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), list)
			}
			printTasks(cmd.OutOrStdout(), list)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printTasks(w io.Writer, list []*tasks.Task) {
	if len(list) == 0 {
		fmt.Fprintln(w, gray.Render("no tasks"))
		return
	}

	for _, t := range list {
		fmt.Fprintf(w, "%s  %-17s %s  %s\n",
			t.ID, string(t.Type), statusStyle(t.Status), gray.Render(humanize.Time(t.UpdatedAt)))
		if t.Error != "" {
			fmt.Fprintf(w, "    %s\n", red.Render(t.Error))
		} else if t.Result != nil {
			fmt.Fprintf(w, "    %s\n", gray.Render(t.Result.Message))
		}
	}
}

func statusStyle(s tasks.TaskStatus) string {
	label := fmt.Sprintf("%-9s", s)
	switch s {
	case tasks.TaskStatusCompleted:
		return green.Render(label)
	case tasks.TaskStatusFailed:
		return red.Render(label)
	case tasks.TaskStatusRunning:
		return cyan.Render(label)
	default:
		return yellow.Render(label)
	}
}

func newTaskGetCmd(a *app) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Print one task as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.taskClient()
			if err != nil {
				return err
			}

			var task *tasks.Task
			if wait {
				task, err = client.Wait(cmd.Context(), args[0], 200*time.Millisecond)
			} else {
				task, err = client.Get(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), task)
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "wait until the task finishes")
	return cmd
}

func newTaskCancelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Request cancellation (running transfers always finish)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.taskClient()
			if err != nil {
				return err
			}
			if err := client.Cancel(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s cancellation is not supported, %s will run to completion\n",
				yellow.Render("note"), args[0])
			return err
		},
	}
}

func newTaskCleanupCmd(a *app) *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Forget finished tasks older than --max-age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.taskClient()
			if err != nil {
				return err
			}
			n, err := client.Cleanup(cmd.Context(), maxAge)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d task(s)\n", n)
			return err
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", time.Hour, "age threshold")
	return cmd
}
