package cli

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"captchahub/internal/services/captcha/domain"
)

type portFunc func() domain.ServicePort

func listCmd(port portFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered tasks and connected clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := port().List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list tasks: %w", err)
			}
			w := cmd.OutOrStdout()
			if len(out.Tasks) == 0 {
				fmt.Fprintln(w, "No registered tasks.")
			} else {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSTATUS\tTYPE\tSTAGE\tWAITING\tDEADLINE")
				for _, t := range out.Tasks {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n",
						t.ID, t.Status, t.ResultType, dash(t.Stage), t.Waiting, formatDeadline(t.WaitUntil, time.Now()))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			if !out.Connected {
				fmt.Fprintln(w, "No clients connected.")
				return nil
			}
			ids := make([]string, 0, len(out.Clients))
			for _, c := range out.Clients {
				ids = append(ids, c.ID)
			}
			fmt.Fprintf(w, "Clients: %s\n", strings.Join(ids, ", "))
			return nil
		},
	}
}

func nextCmd(port portFunc) *cobra.Command {
	var (
		exclusive bool
		wait      bool
		interval  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Claim the oldest waiting task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := port()
			for {
				out, err := svc.Next(cmd.Context(), domain.NextInput{Exclusive: exclusive})
				if err != nil {
					return fmt.Errorf("failed to claim task: %w", err)
				}
				if out.Found && out.Task != nil {
					return printTask(cmd.OutOrStdout(), *out.Task)
				}
				if !wait {
					fmt.Fprintln(cmd.OutOrStdout(), "No waiting tasks.")
					return nil
				}
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-time.After(interval):
				}
			}
		},
	}
	cmd.Flags().BoolVar(&exclusive, "exclusive", false, "hide the task from other operators")
	cmd.Flags().BoolVar(&wait, "wait", false, "poll until a task is waiting")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "poll interval with --wait")
	return cmd
}

func statusCmd(port portFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "status ID",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := port().Status(cmd.Context(), domain.TaskRef{ID: args[0]})
			if err != nil {
				return fmt.Errorf("failed to get task %s: %w", args[0], err)
			}
			return printTask(cmd.OutOrStdout(), v)
		},
	}
}

func solveCmd(port portFunc) *cobra.Command {
	return &cobra.Command{
		Use:     "solve ID RESULT",
		Aliases: []string{"answer"},
		Short:   "Answer a task",
		Long:    `Answer a task. Positional tasks take "x,y"; a malformed position leaves the task waiting.`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := port().Answer(cmd.Context(), domain.ResultInput{ID: args[0], Result: args[1]})
			if err != nil {
				return fmt.Errorf("failed to answer task %s: %w", args[0], err)
			}
			return printTask(cmd.OutOrStdout(), v)
		},
	}
}

func startCmd(port portFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "start ID",
		Short: "Open the browser session of an interactive task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := port().Start(cmd.Context(), domain.TaskRef{ID: args[0]})
			if err != nil {
				return fmt.Errorf("failed to start task %s: %w", args[0], err)
			}
			w := cmd.OutOrStdout()
			switch {
			case !out.Started:
				fmt.Fprintln(w, "Interaction not started.")
			case out.Completed:
				fmt.Fprintln(w, "Solved without a challenge.")
			default:
				fmt.Fprintln(w, "Challenge ready.")
			}
			return printTask(w, out.Task)
		},
	}
}

func interactCmd(port portFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "interact ID ELEMENT [INDEX]",
		Short: "Click a tile or the verify button",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := domain.InteractInput{ID: args[0], Element: args[1]}
			if len(args) == 3 {
				n, err := strconv.Atoi(args[2])
				if err != nil || n < 0 {
					return fmt.Errorf("invalid index %q", args[2])
				}
				in.Index = n
			}
			out, err := port().Interact(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("failed to interact with task %s: %w", args[0], err)
			}
			if out.Done {
				fmt.Fprintln(cmd.OutOrStdout(), "Interaction finished.")
			}
			return printTask(cmd.OutOrStdout(), out.Task)
		},
	}
}

func reloadCmd(port portFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "reload ID",
		Short: "Request a fresh challenge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := port().Reload(cmd.Context(), domain.TaskRef{ID: args[0]})
			if err != nil {
				return fmt.Errorf("failed to reload task %s: %w", args[0], err)
			}
			return printTask(cmd.OutOrStdout(), v)
		},
	}
}

func verdictCmd(port portFunc) *cobra.Command {
	var rejected bool
	cmd := &cobra.Command{
		Use:   "verdict ID",
		Short: "Report whether the target site accepted the answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			correct := !rejected
			v, err := port().Verdict(cmd.Context(), domain.VerdictInput{ID: args[0], Correct: &correct})
			if err != nil {
				return fmt.Errorf("failed to report verdict for task %s: %w", args[0], err)
			}
			return printTask(cmd.OutOrStdout(), v)
		},
	}
	cmd.Flags().BoolVar(&rejected, "rejected", false, "the answer was wrong")
	return cmd
}

func abortCmd(port portFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "abort ID",
		Short: "Give up on a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := port().Abort(cmd.Context(), domain.TaskRef{ID: args[0]})
			if err != nil {
				return fmt.Errorf("failed to abort task %s: %w", args[0], err)
			}
			return printTask(cmd.OutOrStdout(), v)
		},
	}
}

func submitCmd(port portFunc) *cobra.Command {
	var in domain.SubmitInput
	var file string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Register a challenge for solving",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file != "" {
				b, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}
				in.Data = base64.StdEncoding.EncodeToString(b)
				if in.Format == "" {
					in.Format = strings.TrimPrefix(filepath.Ext(file), ".")
				}
			}
			if in.Source == "" && in.Data == "" {
				return fmt.Errorf("either --source or --file is required")
			}
			out, err := port().Submit(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("failed to submit: %w", err)
			}
			if !out.Accepted {
				fmt.Fprintln(cmd.OutOrStdout(), "No solver accepted the task.")
			}
			return printTask(cmd.OutOrStdout(), out.Task)
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Source, "source", "", "challenge source url")
	f.StringVar(&in.Format, "format", "", "image format, defaults to the file extension")
	f.StringVar(&in.ResultType, "type", "", "textual, positional or interactive")
	f.StringVar(&file, "file", "", "challenge image to upload")
	return cmd
}

// printTask writes one task as aligned key value lines
func printTask(w io.Writer, v domain.TaskView) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", v.ID)
	fmt.Fprintf(tw, "STATUS\t%s\n", v.Status)
	fmt.Fprintf(tw, "TYPE\t%s\n", v.ResultType)
	if v.Source != "" {
		fmt.Fprintf(tw, "SOURCE\t%s\n", v.Source)
	}
	if v.Stage != "" {
		fmt.Fprintf(tw, "STAGE\t%s\n", v.Stage)
	}
	if v.Result != nil {
		fmt.Fprintf(tw, "RESULT\t%v\n", v.Result)
	}
	if v.Failure != "" {
		fmt.Fprintf(tw, "FAILURE\t%s\n", v.Failure)
	}
	fmt.Fprintf(tw, "WAITING\t%t\n", v.Waiting)
	fmt.Fprintf(tw, "DEADLINE\t%s\n", formatDeadline(v.WaitUntil, time.Now()))
	if len(v.Handlers) > 0 {
		fmt.Fprintf(tw, "HANDLERS\t%s\n", strings.Join(v.Handlers, ", "))
	}
	return tw.Flush()
}

// formatDeadline renders the remaining waiting time relative to now
func formatDeadline(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := t.Sub(now)
	if d <= 0 {
		return "expired"
	}
	if d < time.Minute {
		return fmt.Sprintf("in %ds", int(d.Seconds()))
	}
	return fmt.Sprintf("in %dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
