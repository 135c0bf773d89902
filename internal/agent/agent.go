package agent

import (
	"context"
	"log/slog"
	"sync"

	"github.com/TheLazyLemur/granitecoder/internal/history"
	"github.com/TheLazyLemur/granitecoder/internal/tools"
	"github.com/TheLazyLemur/granitecoder/internal/turn"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Mode string

const (
	ModeDirect    Mode = "direct"
	ModeRLM       Mode = "rlm"
	ModeResponses Mode = "responses"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeDirect, ModeRLM, ModeResponses:
		return m, nil
	default:
		return "", errors.Errorf("unknown mode %q: want direct, rlm or responses", s)
	}
}

// Config holds everything the agent needs; there are no package defaults.
type Config struct {
	Model          string
	BaseURL        string
	APIKey         string
	Mode           Mode
	MaxIterations  int
	MaxTokens      int
	MaxOutputBytes int
}

// Messenger is the slice of the Messages API the agent uses.
// *anthropic.MessageService satisfies it.
type Messenger interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Recorder persists conversation messages. *history.Store satisfies it.
type Recorder interface {
	Append(session *history.Session, msg history.Message) error
}

type Option func(*Agent)

// WithMessenger replaces the HTTP client, mostly for tests.
func WithMessenger(m Messenger) Option {
	return func(a *Agent) { a.messages = m }
}

func WithRecorder(r Recorder) Option {
	return func(a *Agent) { a.recorder = r }
}

func WithObserver(o turn.Observer) Option {
	return func(a *Agent) { a.observer = o }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// Agent answers coding tasks in one of three modes.
type Agent struct {
	cfg      Config
	messages Messenger
	recorder Recorder
	observer turn.Observer
	logger   *slog.Logger
	orch     *turn.Orchestrator

	mu      sync.Mutex
	session *history.Session
}

// New builds an agent. Unless WithMessenger is given it talks to cfg.BaseURL
// through the Anthropic-compatible Messages API.
func New(cfg Config, opts ...Option) (*Agent, error) {
	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		return nil, errors.New("model required")
	}
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = 1
	}
	if cfg.MaxTokens < 1 {
		cfg.MaxTokens = 4096
	}

	a := &Agent{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}

	if a.messages == nil {
		reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
		}
		client := anthropic.NewClient(reqOpts...)
		a.messages = &client.Messages
	}

	exec := tools.NewExecutor(cfg.MaxOutputBytes, a.logger)
	a.orch = turn.NewOrchestrator(exec, a.observer, a.logger)
	return a, nil
}

// Mode returns the configured mode.
func (a *Agent) Mode() Mode {
	return a.cfg.Mode
}

// SessionID returns the id of the current history session, if one started.
func (a *Agent) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return ""
	}
	return a.session.ID
}

// Reset starts a fresh history session on the next Run.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = nil
}

// Run answers task. path is the codebase directory; in responses mode it is
// the sandbox root for every tool call.
func (a *Agent) Run(ctx context.Context, task, path string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.record(path, "user", task)

	var (
		out string
		err error
	)
	switch a.cfg.Mode {
	case ModeRLM:
		out, err = a.runRLM(ctx, task)
	case ModeResponses:
		out, err = a.runResponses(ctx, task, path)
	default:
		out, err = a.runDirect(ctx, task)
	}
	if err != nil {
		return out, err
	}

	a.record(path, "assistant", out)
	return out, nil
}

func (a *Agent) record(path, role, content string) {
	if a.recorder == nil {
		return
	}
	if a.session == nil {
		a.session = &history.Session{
			ID:      uuid.NewString(),
			WorkDir: path,
			Mode:    string(a.cfg.Mode),
			Model:   a.cfg.Model,
		}
	}
	if err := a.recorder.Append(a.session, history.Message{Role: role, Content: content}); err != nil {
		a.logger.Warn("recording history", "session", a.session.ID, "error", err)
	}
}

func (a *Agent) call(ctx context.Context, system string, msgs []anthropic.MessageParam, toolParams []anthropic.ToolUnionParam) (*anthropic.Message, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.cfg.Model),
		MaxTokens: int64(a.cfg.MaxTokens),
		Messages:  msgs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(toolParams) > 0 {
		params.Tools = toolParams
	}

	resp, err := a.messages.New(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "API call failed")
	}
	return resp, nil
}

func extractTextFromResponse(resp *anthropic.Message) string {
	var text string
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text += b.Text
		}
	}
	return text
}
