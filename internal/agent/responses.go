package agent

import (
	"context"
	"strings"

	"github.com/TheLazyLemur/granitecoder/internal/sandbox"
	"github.com/TheLazyLemur/granitecoder/internal/tools"
	"github.com/TheLazyLemur/granitecoder/internal/turn"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/pkg/errors"
)

const responsesSystemPrompt = `You are a coding assistant working inside a project directory.
Use the provided tools to inspect and change files. All paths are relative to the project root.
When the task is done, reply with a short summary and no tool calls.`

func (a *Agent) runResponses(ctx context.Context, task, root string) (string, error) {
	sb, err := sandbox.New(root)
	if err != nil {
		return "", errors.Wrap(err, "opening sandbox")
	}

	msgs := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(task)),
	}
	toolParams := buildTools(tools.Definitions())

	var transcript []string
	for i := 0; i < a.cfg.MaxIterations; i++ {
		resp, err := a.call(ctx, responsesSystemPrompt, msgs, toolParams)
		if err != nil {
			return strings.Join(transcript, "\n"), err
		}
		msgs = append(msgs, resp.ToParam())

		response := toTurnResponse(resp)
		entry := a.orch.Run(response, sb)
		if s := entry.String(); s != "" {
			transcript = append(transcript, s)
		}

		if !response.HasCalls() {
			break
		}

		var results []anthropic.ContentBlockParamUnion
		for _, inv := range entry.Invocations {
			results = append(results, anthropic.NewToolResultBlock(inv.Call.ID, inv.Result.String(), inv.Result.IsErr()))
		}
		msgs = append(msgs, anthropic.NewUserMessage(results...))

		if resp.StopReason == anthropic.StopReasonEndTurn {
			break
		}
	}

	return strings.Join(transcript, "\n"), nil
}

// toTurnResponse keeps block order. Tool-use blocks with undecodable
// arguments become rejected segments and never reach the executor.
func toTurnResponse(resp *anthropic.Message) turn.Response {
	var out turn.Response
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Segments = append(out.Segments, turn.TextSegment(b.Text))
		case anthropic.ToolUseBlock:
			call := tools.ToolCall{ID: b.ID, Name: b.Name}
			args, err := tools.DecodeArguments(b.Input)
			if err != nil {
				result := tools.Err(b.Name, tools.KindInvalidArguments, "invalid arguments: "+err.Error())
				out.Segments = append(out.Segments, turn.RejectedSegment(call, result))
				continue
			}
			call.Arguments = args
			out.Segments = append(out.Segments, turn.CallSegment(call))
		}
	}
	return out
}

func buildTools(defs []tools.ToolDef) []anthropic.ToolUnionParam {
	var out []anthropic.ToolUnionParam
	for _, t := range defs {
		tool := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: convertInputSchema(t.InputSchema),
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return out
}

func convertInputSchema(schema map[string]any) anthropic.ToolInputSchemaParam {
	param := anthropic.ToolInputSchemaParam{
		Properties: schema["properties"],
	}
	if required, ok := schema["required"].([]string); ok {
		param.Required = required
	}
	return param
}
