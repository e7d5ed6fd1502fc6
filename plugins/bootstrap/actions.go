package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/plugmesh/core"
	"github.com/hupe1980/plugmesh/internal/util"
)

// ReplyTemplateName is the character template key overriding
// DefaultReplyTemplate.
const ReplyTemplateName = "replyTemplate"

// DefaultReplyTemplate prompts for a reply when the response carried no text.
const DefaultReplyTemplate = `# Task: Write the next message for {{.agentName}}.
{{.providers}}

Respond with a JSON object: {"thought": "<reasoning>", "text": "<message>"}`

// ReplyAction sends the response text through the callback. When no
// response carries text a reply is generated with the small text model.
func ReplyAction() core.Action {
	return core.NewAction(ActionReply, reply, func(o *core.ActionOptions) {
		o.Description = "Reply to the current conversation with a message"
		o.Similes = []string{"GREET", "RESPOND"}
	})
}

func reply(ctx context.Context, rt core.Runtime, message *core.Memory, st *core.State, _ map[string]any, callback core.HandlerCallback, responses []*core.Memory) (any, error) {
	var content core.Content

	for _, r := range responses {
		if r != nil && strings.TrimSpace(r.Content.Text) != "" {
			content = core.Content{Text: r.Content.Text, Thought: r.Content.Thought}
			break
		}
	}

	if content.Text == "" {
		generated, err := generateReply(ctx, rt, st)
		if err != nil {
			return nil, err
		}

		content = generated
	}

	content.Actions = []string{ActionReply}
	content.InReplyTo = message.ID

	if callback != nil {
		if _, err := callback(ctx, content); err != nil {
			return nil, err
		}
	}

	return content, nil
}

func generateReply(ctx context.Context, rt core.Runtime, st *core.State) (core.Content, error) {
	var values map[string]any
	if st != nil {
		values = st.Values
	}

	prompt, err := util.RenderTemplate(rt.Character().Template(ReplyTemplateName, DefaultReplyTemplate), values)
	if err != nil {
		return core.Content{}, err
	}

	raw, err := rt.UseModel(ctx, core.ModelTypeTextSmall, core.ModelParams{core.ParamPrompt: prompt})
	if err != nil {
		return core.Content{}, err
	}

	text, ok := raw.(string)
	if !ok {
		return core.Content{}, fmt.Errorf("unexpected reply type %T", raw)
	}

	var parsed struct {
		Thought string `json:"thought"`
		Text    string `json:"text"`
	}

	trimmed := strings.TrimSpace(text)

	start, end := strings.Index(trimmed, "{"), strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start && json.Unmarshal([]byte(trimmed[start:end+1]), &parsed) == nil && parsed.Text != "" {
		return core.Content{Text: parsed.Text, Thought: parsed.Thought}, nil
	}

	return core.Content{Text: trimmed}, nil
}

// IgnoreAction ends the conversation turn without sending anything.
func IgnoreAction() core.Action {
	return core.NewAction(ActionIgnore, noop, func(o *core.ActionOptions) {
		o.Description = "Ignore the message and stop responding"
		o.Similes = []string{"STOP_TALKING", "STOP_CHATTING", "STOP_CONVERSATION"}
	})
}

// NoneAction performs no additional action.
func NoneAction() core.Action {
	return core.NewAction(ActionNone, noop, func(o *core.ActionOptions) {
		o.Description = "Respond without performing any additional action"
		o.Similes = []string{"NO_ACTION", "NO_REACTION", "NO_RESPONSE"}
	})
}

func noop(context.Context, core.Runtime, *core.Memory, *core.State, map[string]any, core.HandlerCallback, []*core.Memory) (any, error) {
	return nil, nil
}
