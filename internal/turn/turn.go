package turn

import (
	"log/slog"
	"strings"

	"github.com/TheLazyLemur/granitecoder/internal/sandbox"
	"github.com/TheLazyLemur/granitecoder/internal/tools"
)

// Segment is one piece of a model response: either text or a tool call.
// A call with Rejected set failed before dispatch and is never executed.
type Segment struct {
	Text     string
	Call     *tools.ToolCall
	Rejected *tools.Result
}

// TextSegment wraps plain model text.
func TextSegment(text string) Segment {
	return Segment{Text: text}
}

// CallSegment wraps a tool call.
func CallSegment(call tools.ToolCall) Segment {
	return Segment{Call: &call}
}

// RejectedSegment wraps a call that could not be decoded, with the error
// result to report in its place.
func RejectedSegment(call tools.ToolCall, result tools.Result) Segment {
	return Segment{Call: &call, Rejected: &result}
}

// Response is a single model response in the order it was produced.
type Response struct {
	Segments []Segment
}

// HasCalls reports whether the response contains any tool call.
func (r Response) HasCalls() bool {
	for _, s := range r.Segments {
		if s.Call != nil {
			return true
		}
	}
	return false
}

// Invocation pairs a call with its result.
type Invocation struct {
	Call   tools.ToolCall
	Result tools.Result
}

// Entry is the transcript entry produced from one response.
type Entry struct {
	Invocations []Invocation
	Texts       []string
}

// String renders tool lines first, then the response text.
func (e Entry) String() string {
	var lines []string
	for _, inv := range e.Invocations {
		lines = append(lines, inv.Call.Name+": "+inv.Result.String())
	}
	for _, t := range e.Texts {
		if strings.TrimSpace(t) != "" {
			lines = append(lines, t)
		}
	}
	return strings.Join(lines, "\n")
}

// Executor runs a single tool call. *tools.Executor satisfies it.
type Executor interface {
	ExecuteIn(call tools.ToolCall, sb sandbox.Sandbox) tools.Result
}

// Observer is notified around each tool call.
type Observer interface {
	ToolStarted(call tools.ToolCall)
	ToolFinished(call tools.ToolCall, result tools.Result)
}

// Orchestrator turns one response into one transcript entry.
type Orchestrator struct {
	exec     Executor
	observer Observer
	logger   *slog.Logger
}

// NewOrchestrator creates an orchestrator. observer may be nil.
func NewOrchestrator(exec Executor, observer Observer, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{exec: exec, observer: observer, logger: logger}
}

// Run executes the response's tool calls one at a time in the order received,
// so a later call sees the effects of an earlier one.
func (o *Orchestrator) Run(resp Response, sb sandbox.Sandbox) Entry {
	var entry Entry
	for _, seg := range resp.Segments {
		if seg.Call == nil {
			entry.Texts = append(entry.Texts, seg.Text)
			continue
		}

		call := *seg.Call
		if o.observer != nil {
			o.observer.ToolStarted(call)
		}

		var result tools.Result
		if seg.Rejected != nil {
			o.logger.Warn("rejected tool call", "name", call.Name, "id", call.ID)
			result = *seg.Rejected
		} else {
			o.logger.Info("executing tool", "name", call.Name, "id", call.ID)
			result = o.exec.ExecuteIn(call, sb)
		}

		if o.observer != nil {
			o.observer.ToolFinished(call, result)
		}
		entry.Invocations = append(entry.Invocations, Invocation{Call: call, Result: result})
	}
	return entry
}
