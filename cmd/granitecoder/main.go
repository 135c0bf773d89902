// Package main is the entry point for the granitecoder CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/TheLazyLemur/granitecoder/internal/config"
	"github.com/TheLazyLemur/granitecoder/internal/history"
	"github.com/TheLazyLemur/granitecoder/internal/mcpserver"
	"github.com/TheLazyLemur/granitecoder/internal/status"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Set by ldflags.
var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "granitecoder",
		Short:         "Token-efficient coding agent for a local Granite model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(chatCmd(), solveCmd(), mcpCmd(), statusCmd(), historyCmd(), versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "granitecoder %s\n", version)
		},
	}
}

func chatCmd() *cobra.Command {
	var flags agentFlags
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.config(cmd)
			if err != nil {
				return err
			}
			app, err := newApp(cmd.Context(), cfg, flags.watch, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Granite Coder (using %s, mode: %s)\n", cfg.Model, app.agent.Mode())
			fmt.Fprint(out, "Type 'exit' to quit, 'clear' to start a new conversation\n\n")
			return chatLoop(cmd.Context(), cmd.InOrStdin(), out, cmd.ErrOrStderr(), app.agent, flags.path)
		},
	}
	flags.register(cmd)
	return cmd
}

func solveCmd() *cobra.Command {
	var flags agentFlags
	cmd := &cobra.Command{
		Use:   "solve TASK",
		Short: "Solve a single task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.config(cmd)
			if err != nil {
				return err
			}
			app, err := newApp(cmd.Context(), cfg, flags.watch, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Granite Coder solving (%s mode): %s\n\n", app.agent.Mode(), args[0])
			result, err := app.agent.Run(cmd.Context(), args[0], flags.path)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, result)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func mcpCmd() *cobra.Command {
	var flags agentFlags
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start as MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.config(cmd)
			if err != nil {
				return err
			}
			// stdout carries JSON-RPC; everything else goes to stderr
			app, err := newApp(cmd.Context(), cfg, flags.watch, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			return mcpserver.New(app.agent, version, app.logger).ServeStdio()
		},
	}
	flags.register(cmd)
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check model server status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			return printStatus(cmd.Context(), cmd.OutOrStdout(), cfg.BaseURL)
		},
	}
}

func printStatus(ctx context.Context, w io.Writer, baseURL string) error {
	report, err := status.Check(ctx, nil, baseURL)
	if err != nil {
		slog.Warn("status check", "error", err)
		fmt.Fprintln(w, "Ollama: ERROR")
		return nil
	}
	for _, line := range report.Lines() {
		fmt.Fprintln(w, line)
	}
	return nil
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect saved conversations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List saved sessions, most recent first",
			Args:  cobra.NoArgs,
			RunE: withStore(func(cmd *cobra.Command, store *history.Store, _ []string) error {
				sessions, err := store.List()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(sessions) == 0 {
					fmt.Fprintln(out, "No saved sessions.")
					return nil
				}
				for _, s := range sessions {
					fmt.Fprintln(out, s.Summary())
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "show ID",
			Short: "Print a session transcript",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(cmd *cobra.Command, store *history.Store, args []string) error {
				session, err := store.Load(args[0])
				if err != nil {
					return err
				}
				printSession(cmd.OutOrStdout(), session)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "delete ID",
			Short: "Delete a session",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(cmd *cobra.Command, store *history.Store, args []string) error {
				if err := store.Delete(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			}),
		},
	)
	return cmd
}

func withStore(fn func(*cobra.Command, *history.Store, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFromEnv()
		if err != nil {
			return err
		}
		store, err := history.Open(cfg.HistoryPath)
		if err != nil {
			return errors.Wrap(err, "opening history")
		}
		defer store.Close()
		return fn(cmd, store, args)
	}
}

func printSession(w io.Writer, s *history.Session) {
	fmt.Fprintf(w, "Session %s (%s mode, %s)\n", s.ID, s.Mode, s.Model)
	fmt.Fprintf(w, "Directory: %s\n\n", s.WorkDir)
	for _, m := range s.Messages {
		fmt.Fprintf(w, "[%s] %s:\n%s\n\n", m.Timestamp.Format("2006-01-02 15:04:05"), m.Role, m.Content)
	}
}
