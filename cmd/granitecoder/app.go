package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/TheLazyLemur/granitecoder/internal/agent"
	"github.com/TheLazyLemur/granitecoder/internal/config"
	"github.com/TheLazyLemur/granitecoder/internal/dashboard"
	"github.com/TheLazyLemur/granitecoder/internal/history"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const clearScreen = "\033[2J\033[H"

// agentFlags are shared by the commands that run the agent. Only flags the
// user actually set override the loaded config.
type agentFlags struct {
	model         string
	mode          string
	maxIterations int
	path          string
	watch         string
}

func (f *agentFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.model, "model", config.DefaultModel, "Model to use")
	fs.StringVar(&f.mode, "mode", config.DefaultMode, "Agent mode: direct, rlm or responses")
	fs.IntVar(&f.maxIterations, "max-iterations", config.DefaultMaxIterations, "Max rlm rounds or tool rounds")
	fs.StringVar(&f.path, "path", ".", "Codebase path")
	fs.StringVar(&f.watch, "watch", "", "Stream tool activity over websocket on this address (e.g. 127.0.0.1:7777)")
}

func (f *agentFlags) config(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	f.apply(cmd, cfg)
	if f.watch == "" {
		f.watch = cfg.WatchAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (f *agentFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("model") {
		cfg.Model = f.model
	}
	if fs.Changed("mode") {
		cfg.Mode = f.mode
	}
	if fs.Changed("max-iterations") {
		cfg.MaxIterations = f.maxIterations
	}
}

// app holds the wired dependencies of one agent command.
type app struct {
	agent  *agent.Agent
	logger *slog.Logger

	store  *history.Store
	server *dashboard.Server
	cancel context.CancelFunc
}

func newApp(ctx context.Context, cfg *config.Config, watchAddr string, stderr io.Writer) (*app, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, errors.Errorf("invalid log level %q", cfg.LogLevel)
	}
	var handler slog.Handler = slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})

	ctx, cancel := context.WithCancel(ctx)
	a := &app{cancel: cancel}
	var opts []agent.Option

	if watchAddr != "" {
		hub := dashboard.NewHub()
		go hub.Run(ctx)
		a.server = dashboard.NewServer(hub)
		bound, err := a.server.Start(watchAddr)
		if err != nil {
			cancel()
			return nil, err
		}
		fmt.Fprintf(stderr, "Watching on ws://%s/ws\n", bound)
		handler = dashboard.NewBroadcastHandler(hub, handler)
		opts = append(opts, agent.WithObserver(dashboard.NewObserver(hub)))
	}

	a.logger = slog.New(handler)
	slog.SetDefault(a.logger)
	opts = append(opts, agent.WithLogger(a.logger))

	store, err := history.Open(cfg.HistoryPath)
	if err != nil {
		a.logger.Warn("history disabled", "path", cfg.HistoryPath, "error", err)
	} else {
		a.store = store
		opts = append(opts, agent.WithRecorder(store))
	}

	mode, err := agent.ParseMode(cfg.Mode)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.agent, err = agent.New(agent.Config{
		Model:          cfg.Model,
		BaseURL:        cfg.BaseURL,
		APIKey:         cfg.APIKey,
		Mode:           mode,
		MaxIterations:  cfg.MaxIterations,
		MaxTokens:      cfg.MaxTokens,
		MaxOutputBytes: cfg.MaxOutputBytes,
	}, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		a.server.Shutdown(ctx)
		cancel()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing history", "error", err)
		}
	}
	a.cancel()
}

// conversation is the part of the agent the chat loop drives.
type conversation interface {
	Run(ctx context.Context, task, path string) (string, error)
	Reset()
}

// chatLoop reads tasks line by line until exit, quit, EOF or ctx is done.
// A failed task is reported and the loop continues.
func chatLoop(ctx context.Context, in io.Reader, out, errOut io.Writer, conv conversation, path string) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for ctx.Err() == nil {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			break
		}
		task := strings.TrimSpace(scanner.Text())

		switch strings.ToLower(task) {
		case "exit", "quit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "clear":
			fmt.Fprint(out, clearScreen)
			conv.Reset()
			continue
		case "":
			continue
		}

		fmt.Fprintln(out, "Thinking...")
		result, err := conv.Run(ctx, task, path)
		if err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "\n%s\n\n", result)
	}

	fmt.Fprintln(out, "Goodbye!")
	return scanner.Err()
}
