package request

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zenGate-Global/palmyra-workspaces/apps/cli/internal/clistack"
	"github.com/zenGate-Global/palmyra-workspaces/apps/internal/wiring"
	"github.com/zenGate-Global/palmyra-workspaces/domains/provisioning/be/service"
)

// Command groups operator actions on provisioning requests.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "request",
		Aliases: []string{"requests", "req"},
		Short:   "Submit, approve and inspect workspace provisioning requests",
	}

	cmd.AddCommand(submitCommand())
	cmd.AddCommand(approveCommand())
	cmd.AddCommand(statusCommand())
	cmd.AddCommand(listCommand())
	cmd.AddCommand(resetCommand())
	cmd.AddCommand(resumeCommand())
	return cmd
}

func submitCommand() *cobra.Command {
	var input service.SubmitInput

	c := &cobra.Command{
		Use:   "submit",
		Short: "Record a new provisioning request",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, func(ctx context.Context, stack *wiring.Stack) error {
				snap, err := stack.Service.Submit(ctx, input)
				if err != nil {
					return err
				}
				return clistack.PrintJSON(cmd.OutOrStdout(), snap)
			})
		},
	}

	c.Flags().StringVar(&input.TenantName, "name", "", "Tenant display name")
	c.Flags().StringVar(&input.AdminEmail, "admin-email", "", "Workspace admin email")
	c.Flags().StringVar(&input.Tier, "tier", "", "Requested tier (standard or premium)")

	_ = c.MarkFlagRequired("name")
	_ = c.MarkFlagRequired("admin-email")

	return c
}

func approveCommand() *cobra.Command {
	var (
		tier    string
		wait    bool
		timeout time.Duration
	)

	c := &cobra.Command{
		Use:   "approve <request-id>",
		Short: "Approve a pending request and run the provisioning pipeline",
		Long: "Approve a pending request. With --wait (the default) the pipeline runs in this process " +
			"until the request reaches a terminal status. Without it the request stays in provisioning " +
			"until an API server replica resumes it.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withStack(cmd, func(ctx context.Context, stack *wiring.Stack) error {
				if _, err := stack.Service.Approve(ctx, id, tier); err != nil {
					return err
				}
				if !wait {
					fmt.Fprintf(cmd.ErrOrStderr(), "Request %s approved; provisioning continues on the next server start.\n", id)
					return stack.Dispatcher.Shutdown(ctx)
				}
				return waitAndReport(ctx, cmd.OutOrStdout(), stack, id, timeout)
			})
		},
	}

	c.Flags().StringVar(&tier, "tier", "", "Tier override (standard or premium)")
	c.Flags().BoolVar(&wait, "wait", true, "Run the pipeline here and wait for a terminal status")
	c.Flags().DurationVar(&timeout, "timeout", time.Hour, "Stop waiting after this long; the run resumes on the next start")

	return c
}

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <request-id>",
		Short: "Show the status snapshot of a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withStack(cmd, func(ctx context.Context, stack *wiring.Stack) error {
				snap, err := stack.Service.GetStatus(ctx, id)
				if err != nil {
					return err
				}
				return clistack.PrintJSON(cmd.OutOrStdout(), snap)
			})
		},
	}
}

func listCommand() *cobra.Command {
	var (
		status   string
		page     int
		pageSize int
	)

	c := &cobra.Command{
		Use:   "list",
		Short: "List requests, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := service.ListOptions{Page: page, PageSize: pageSize}
			if status != "" {
				st := service.Status(status)
				if !st.Valid() {
					return fmt.Errorf("unknown status %q", status)
				}
				opts.Status = &st
			}
			return withStack(cmd, func(ctx context.Context, stack *wiring.Stack) error {
				res, err := stack.Service.List(ctx, opts)
				if err != nil {
					return err
				}
				return clistack.PrintJSON(cmd.OutOrStdout(), res)
			})
		},
	}

	c.Flags().StringVar(&status, "status", "", "Filter by status")
	c.Flags().IntVar(&page, "page", 1, "Page number")
	c.Flags().IntVar(&pageSize, "page-size", 20, "Page size")

	return c
}

func resetCommand() *cobra.Command {
	var (
		wait    bool
		timeout time.Duration
	)

	c := &cobra.Command{
		Use:   "reset <request-id>",
		Short: "Re-enter provisioning for a failed or timed-out request at its failed step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withStack(cmd, func(ctx context.Context, stack *wiring.Stack) error {
				if _, err := stack.Service.Reset(ctx, id); err != nil {
					return err
				}
				if !wait {
					return stack.Dispatcher.Shutdown(ctx)
				}
				return waitAndReport(ctx, cmd.OutOrStdout(), stack, id, timeout)
			})
		},
	}

	c.Flags().BoolVar(&wait, "wait", true, "Run the pipeline here and wait for a terminal status")
	c.Flags().DurationVar(&timeout, "timeout", time.Hour, "Stop waiting after this long")

	return c
}

func resumeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume every request left in provisioning and wait for them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, func(ctx context.Context, stack *wiring.Stack) error {
				n, err := stack.Dispatcher.ResumeInFlight(ctx, stack.Repo)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Resuming %d request(s).\n", n)
				stack.Dispatcher.Wait()
				return nil
			})
		},
	}
}

// withStack runs fn with a stack that is torn down afterwards. SIGINT and SIGTERM cancel ctx.
func withStack(cmd *cobra.Command, fn func(ctx context.Context, stack *wiring.Stack) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, closeStack, err := clistack.Open(ctx)
	if err != nil {
		return err
	}
	defer closeStack()
	return fn(ctx, stack)
}

// waitAndReport drives the run in-process and prints the final snapshot.
func waitAndReport(ctx context.Context, out io.Writer, stack *wiring.Stack, id uuid.UUID, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		stack.Dispatcher.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-waitCtx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelShutdown()
		if err := stack.Dispatcher.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("stop provisioning run: %w", err)
		}
	}

	snap, err := stack.Service.GetStatus(context.WithoutCancel(ctx), id)
	if err != nil {
		return err
	}
	if err := clistack.PrintJSON(out, snap); err != nil {
		return err
	}
	switch snap.Status {
	case service.StatusApproved:
		return nil
	case service.StatusProvisioning:
		return errors.New("provisioning interrupted; the request resumes on the next start")
	default:
		return fmt.Errorf("provisioning ended with status %s: %s", snap.Status, snap.Error)
	}
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid request id %q: %w", raw, err)
	}
	return id, nil
}
