package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

const rlmSystemPrompt = `You answer coding questions by decomposing them.
Reply with exactly one of:
QUERY: <a smaller sub-question whose answer you need first>
FINAL: <your complete answer>`

func (a *Agent) runDirect(ctx context.Context, task string) (string, error) {
	resp, err := a.call(ctx, "", []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(task)),
	}, nil)
	if err != nil {
		return "", err
	}
	return extractTextFromResponse(resp), nil
}

// runRLM lets the model recurse: each QUERY is answered by a direct call and
// added to the notes for the next round, until FINAL or MaxIterations.
func (a *Agent) runRLM(ctx context.Context, task string) (string, error) {
	var (
		notes []string
		last  string
	)
	for i := 0; i < a.cfg.MaxIterations; i++ {
		lastRound := i == a.cfg.MaxIterations-1
		resp, err := a.call(ctx, rlmSystemPrompt, []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(rlmPrompt(task, notes, lastRound))),
		}, nil)
		if err != nil {
			return last, err
		}
		last = extractTextFromResponse(resp)

		directive, body := parseDirective(last)
		switch directive {
		case "QUERY":
			if lastRound {
				return body, nil
			}
			a.logger.Debug("rlm sub-query", "iteration", i, "query", body)
			answer, err := a.runDirect(ctx, body)
			if err != nil {
				return last, err
			}
			notes = append(notes, fmt.Sprintf("Q: %s\nA: %s", body, strings.TrimSpace(answer)))
		case "FINAL":
			return body, nil
		default:
			return last, nil
		}
	}
	return last, nil
}

func rlmPrompt(task string, notes []string, lastRound bool) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(task)
	b.WriteString("\n\nProvide a direct, concise answer.")
	if len(notes) > 0 {
		b.WriteString("\n\nWhat you have worked out so far:\n")
		b.WriteString(strings.Join(notes, "\n\n"))
	}
	if lastRound {
		b.WriteString("\n\nThis is your last step: reply with FINAL.")
	}
	return b.String()
}

// parseDirective splits "QUERY: x" or "FINAL: x". Anything else has no directive.
func parseDirective(reply string) (string, string) {
	trimmed := strings.TrimSpace(reply)
	for _, d := range []string{"QUERY", "FINAL"} {
		if strings.HasPrefix(trimmed, d+":") {
			return d, strings.TrimSpace(strings.TrimPrefix(trimmed, d+":"))
		}
	}
	return "", trimmed
}
