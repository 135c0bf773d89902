package dashboard

import (
	"time"

	"github.com/TheLazyLemur/granitecoder/internal/tools"
	"github.com/TheLazyLemur/granitecoder/internal/turn"
)

var _ turn.Observer = (*Observer)(nil)

// Observer streams tool activity to the hub.
type Observer struct {
	hub *Hub
}

func NewObserver(hub *Hub) *Observer {
	return &Observer{hub: hub}
}

func (o *Observer) ToolStarted(call tools.ToolCall) {
	o.hub.Broadcast(Message{
		Type:      "tool_call",
		Time:      time.Now().Format(time.RFC3339),
		Tool:      call.Name,
		CallID:    call.ID,
		Arguments: call.Arguments,
	})
}

func (o *Observer) ToolFinished(call tools.ToolCall, result tools.Result) {
	msg := Message{
		Type:    "tool_result",
		Time:    time.Now().Format(time.RFC3339),
		Tool:    call.Name,
		CallID:  call.ID,
		Content: result.String(),
		IsError: result.IsErr(),
	}
	if result.IsErr() {
		msg.Kind = result.Kind.String()
	}
	o.hub.Broadcast(msg)
}
