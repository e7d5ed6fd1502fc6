package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/plugmesh/core"
)

// DefaultRecentMessagesCount bounds the RECENT_MESSAGES history.
const DefaultRecentMessagesCount = 20

// CharacterProvider describes the agent. It merges first.
func CharacterProvider() core.Provider {
	return core.NewProvider(ProviderCharacter, func(_ context.Context, rt core.Runtime, _ *core.Memory, _ *core.State) (core.ProviderResult, error) {
		c := rt.Character()
		if c == nil {
			return core.ProviderResult{}, nil
		}

		var sb strings.Builder

		fmt.Fprintf(&sb, "# About %s", c.Name)

		for _, line := range c.Bio {
			sb.WriteString("\n")
			sb.WriteString(line)
		}

		return core.ProviderResult{
			Text: sb.String(),
			Values: map[string]any{
				"agentName": c.Name,
				"bio":       strings.Join(c.Bio, "\n"),
				"system":    c.System,
			},
		}, nil
	}, func(o *core.ProviderOptions) {
		o.Description = "Agent name and biography"
		o.Position = -10
	})
}

// TimeProvider reports the current UTC time.
func TimeProvider() core.Provider {
	return newTimeProvider(time.Now)
}

func newTimeProvider(now func() time.Time) core.Provider {
	return core.NewProvider(ProviderTime, func(context.Context, core.Runtime, *core.Memory, *core.State) (core.ProviderResult, error) {
		t := now().UTC().Format(time.RFC3339)

		return core.ProviderResult{
			Text:   "The current date and time is " + t + ".",
			Values: map[string]any{"time": t},
		}, nil
	}, func(o *core.ProviderOptions) {
		o.Description = "Current date and time"
	})
}

// RecentMessagesProvider lists the latest messages of the room, oldest
// first. It merges last.
func RecentMessagesProvider(count int) core.Provider {
	return core.NewProvider(ProviderRecentMessages, func(ctx context.Context, rt core.Runtime, message *core.Memory, _ *core.State) (core.ProviderResult, error) {
		db := rt.Adapter()
		if db == nil || message == nil {
			return core.ProviderResult{}, nil
		}

		memories, err := db.GetMemories(ctx, core.MemoryQuery{
			TableName: core.TableMessages,
			RoomID:    message.RoomID,
			Count:     count,
		})
		if err != nil {
			return core.ProviderResult{}, fmt.Errorf("failed to load recent messages: %w", err)
		}

		if len(memories) == 0 {
			return core.ProviderResult{Values: map[string]any{"recentMessages": ""}}, nil
		}

		names := make(map[string]string)
		lines := make([]string, 0, len(memories))

		for i := len(memories) - 1; i >= 0; i-- {
			m := memories[i]
			if m.Content.Text == "" {
				continue
			}

			name, err := senderName(ctx, rt, names, m.EntityID)
			if err != nil {
				return core.ProviderResult{}, err
			}

			lines = append(lines, name+": "+m.Content.Text)
		}

		recent := strings.Join(lines, "\n")

		return core.ProviderResult{
			Text:   "# Conversation Messages\n" + recent,
			Values: map[string]any{"recentMessages": recent},
			Data:   map[string]any{"messages": memories},
		}, nil
	}, func(o *core.ProviderOptions) {
		o.Description = "Recent messages in the room"
		o.Position = 100
	})
}

func senderName(ctx context.Context, rt core.Runtime, cache map[string]string, entityID string) (string, error) {
	if name, ok := cache[entityID]; ok {
		return name, nil
	}

	name := entityID

	if entityID == rt.AgentID() && rt.Character() != nil {
		name = rt.Character().Name
	} else {
		entity, err := rt.Adapter().GetEntityByID(ctx, entityID)
		if err != nil {
			return "", fmt.Errorf("failed to get entity %s: %w", entityID, err)
		}

		if entity != nil && len(entity.Names) > 0 {
			name = entity.Names[0]
		}
	}

	cache[entityID] = name

	return name, nil
}

// ActionsProvider lists the actions that validate for the message. Private.
func ActionsProvider() core.Provider {
	return core.NewProvider(ProviderActions, func(ctx context.Context, rt core.Runtime, message *core.Memory, st *core.State) (core.ProviderResult, error) {
		var (
			names []string
			lines []string
		)

		for _, a := range rt.Actions() {
			ok, err := a.Validate(ctx, rt, message, st)
			if err != nil {
				return core.ProviderResult{}, fmt.Errorf("failed to validate action %s: %w", a.Name(), err)
			}

			if !ok {
				continue
			}

			names = append(names, a.Name())
			lines = append(lines, describe(a.Name(), a.Description()))
		}

		if len(names) == 0 {
			return core.ProviderResult{Values: map[string]any{"actionNames": ""}}, nil
		}

		return core.ProviderResult{
			Text:   "# Available Actions\n" + strings.Join(lines, "\n"),
			Values: map[string]any{"actionNames": strings.Join(names, ", ")},
		}, nil
	}, func(o *core.ProviderOptions) {
		o.Description = "Actions available for the message"
		o.Private = true
	})
}

// EvaluatorsProvider lists the registered evaluators. Private.
func EvaluatorsProvider() core.Provider {
	return core.NewProvider(ProviderEvaluators, func(_ context.Context, rt core.Runtime, _ *core.Memory, _ *core.State) (core.ProviderResult, error) {
		evaluators := rt.Evaluators()
		if len(evaluators) == 0 {
			return core.ProviderResult{}, nil
		}

		names := make([]string, 0, len(evaluators))
		lines := make([]string, 0, len(evaluators))

		for _, ev := range evaluators {
			names = append(names, ev.Name())
			lines = append(lines, describe(ev.Name(), ev.Description()))
		}

		return core.ProviderResult{
			Text:   "# Evaluators\n" + strings.Join(lines, "\n"),
			Values: map[string]any{"evaluatorNames": strings.Join(names, ", ")},
		}, nil
	}, func(o *core.ProviderOptions) {
		o.Description = "Registered evaluators"
		o.Private = true
	})
}

// KnowledgeProvider retrieves knowledge relevant to the message. Dynamic.
func KnowledgeProvider() core.Provider {
	return core.NewProvider(ProviderKnowledge, func(ctx context.Context, rt core.Runtime, message *core.Memory, _ *core.State) (core.ProviderResult, error) {
		items, err := rt.GetKnowledge(ctx, message)
		if err != nil {
			return core.ProviderResult{}, err
		}

		if len(items) == 0 {
			return core.ProviderResult{}, nil
		}

		lines := make([]string, 0, len(items))
		for _, it := range items {
			lines = append(lines, "- "+it.Content.Text)
		}

		knowledge := strings.Join(lines, "\n")

		return core.ProviderResult{
			Text:   "# Knowledge\n" + knowledge,
			Values: map[string]any{"knowledge": knowledge},
			Data:   map[string]any{"knowledge": items},
		}, nil
	}, func(o *core.ProviderOptions) {
		o.Description = "Knowledge relevant to the message"
		o.Dynamic = true
	})
}

func describe(name, description string) string {
	if description == "" {
		return "- " + name
	}

	return "- " + name + ": " + description
}
