package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/plugmesh/core"
	"github.com/hupe1980/plugmesh/model"
)

// embeddingProbe is embedded once at startup to learn the vector dimension.
const embeddingProbe = "embedding dimension probe"

// ErrAlreadyInitialized is returned by a second call to Initialize.
var ErrAlreadyInitialized = errors.New("engine already initialized")

// Initialize installs plugins and bootstraps the agent. Every failure is
// returned as a *core.SetupError.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	if e.initialized {
		e.mu.Unlock()
		return ErrAlreadyInitialized
	}

	e.initialized = true
	e.mu.Unlock()

	for _, p := range e.initial {
		if err := e.Install(ctx, p); err != nil {
			return &core.SetupError{Step: "plugin " + p.Name, Err: err}
		}
	}

	for _, name := range e.character.Plugins {
		if e.hasPlugin(name) {
			continue
		}

		p, ok := e.catalog.Lookup(name)
		if !ok {
			return &core.SetupError{Step: "plugin " + name, Err: &core.NotFoundError{Kind: "plugin", Key: name}}
		}

		if err := e.Install(ctx, p); err != nil {
			return &core.SetupError{Step: "plugin " + name, Err: err}
		}
	}

	db := e.Adapter()
	if db == nil {
		return &core.SetupError{Step: "adapter", Err: errors.New("no database adapter bound")}
	}

	if err := db.Init(ctx); err != nil {
		return &core.SetupError{Step: "adapter init", Err: err}
	}

	if _, err := db.EnsureAgentExists(ctx, core.Agent{ID: e.agentID, Name: e.character.Name, Enabled: true}); err != nil {
		return &core.SetupError{Step: "agent", Err: err}
	}

	if err := e.EnsureConnection(ctx, ConnectionParams{
		EntityID: e.agentID,
		RoomID:   e.agentID,
		WorldID:  e.agentID,
		Name:     e.character.Name,
		UserName: e.character.Username,
		Source:   "self",
		Type:     core.ChannelTypeSelf,
	}); err != nil {
		return &core.SetupError{Step: "agent connection", Err: err}
	}

	if err := e.configureEmbeddingDimension(ctx, db); err != nil {
		return &core.SetupError{Step: "embedding dimension", Err: err}
	}

	if len(e.character.Knowledge) > 0 {
		if err := e.knowledge.ProcessCharacterKnowledge(ctx, e, e.character.Knowledge); err != nil {
			return &core.SetupError{Step: "character knowledge", Err: err}
		}
	}

	e.scheduler.Start()

	e.logger.Info("agent initialized", "agent_id", e.agentID, "name", e.character.Name, "plugins", e.Plugins())

	return nil
}

func (e *Engine) hasPlugin(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	_, ok := e.installed[name]

	return ok
}

func (e *Engine) configureEmbeddingDimension(ctx context.Context, db core.DatabaseAdapter) error {
	if _, ok := e.models.Resolve(core.ModelTypeTextEmbedding); !ok {
		e.logger.Warn("no embedding model registered, skipping embedding dimension setup")
		return nil
	}

	res, err := e.UseModel(ctx, core.ModelTypeTextEmbedding, core.ModelParams{core.ParamText: embeddingProbe})
	if err != nil {
		return err
	}

	emb, err := model.AsEmbedding(res)
	if err != nil {
		return err
	}

	if len(emb) == 0 {
		return errors.New("embedding model returned an empty vector")
	}

	return db.EnsureEmbeddingDimension(ctx, len(emb))
}

// ConnectionParams describes where a message comes from.
type ConnectionParams struct {
	EntityID  string
	RoomID    string
	WorldID   string
	ServerID  string
	ChannelID string
	Name      string
	UserName  string
	Source    string
	Type      core.ChannelType
	Metadata  map[string]any
}

// EnsureConnection creates the world, entity, room and room memberships of
// params when they do not exist yet. The agent itself always participates in
// the room. An empty WorldID is derived from the agent and server id.
func (e *Engine) EnsureConnection(ctx context.Context, params ConnectionParams) error {
	if params.EntityID == "" || params.RoomID == "" {
		return errors.New("entity id and room id are required")
	}

	db := e.Adapter()
	if db == nil {
		return errors.New("no database adapter bound")
	}

	if params.WorldID == "" {
		params.WorldID = core.DeterministicID(e.agentID, "world", params.ServerID)
	}

	if params.Type == "" {
		params.Type = core.ChannelTypeDM
	}

	world, err := db.GetWorld(ctx, params.WorldID)
	if err != nil {
		return fmt.Errorf("failed to get world %s: %w", params.WorldID, err)
	}

	if world == nil {
		if err := db.CreateWorld(ctx, core.World{
			ID:       params.WorldID,
			Name:     params.ServerID,
			AgentID:  e.agentID,
			ServerID: params.ServerID,
		}); err != nil {
			return fmt.Errorf("failed to create world %s: %w", params.WorldID, err)
		}

		e.emitQuietly(ctx, params, core.EventWorldJoined)
	}

	entity, err := db.GetEntityByID(ctx, params.EntityID)
	if err != nil {
		return fmt.Errorf("failed to get entity %s: %w", params.EntityID, err)
	}

	if entity == nil {
		if err := db.CreateEntity(ctx, core.Entity{
			ID:       params.EntityID,
			Names:    names(params.Name, params.UserName),
			AgentID:  e.agentID,
			Metadata: params.Metadata,
		}); err != nil {
			return fmt.Errorf("failed to create entity %s: %w", params.EntityID, err)
		}

		e.emitQuietly(ctx, params, core.EventEntityJoined)
	}

	room, err := db.GetRoom(ctx, params.RoomID)
	if err != nil {
		return fmt.Errorf("failed to get room %s: %w", params.RoomID, err)
	}

	if room == nil {
		if err := db.CreateRoom(ctx, core.Room{
			ID:        params.RoomID,
			Name:      params.Name,
			AgentID:   e.agentID,
			Source:    params.Source,
			Type:      params.Type,
			ChannelID: params.ChannelID,
			ServerID:  params.ServerID,
			WorldID:   params.WorldID,
		}); err != nil {
			return fmt.Errorf("failed to create room %s: %w", params.RoomID, err)
		}
	}

	participants, err := db.GetParticipantsForRoom(ctx, params.RoomID)
	if err != nil {
		return fmt.Errorf("failed to get participants of room %s: %w", params.RoomID, err)
	}

	for _, id := range []string{params.EntityID, e.agentID} {
		if slices.Contains(participants, id) {
			continue
		}

		if err := db.AddParticipant(ctx, id, params.RoomID); err != nil {
			return fmt.Errorf("failed to add participant %s to room %s: %w", id, params.RoomID, err)
		}

		participants = append(participants, id)
	}

	return nil
}

func (e *Engine) emitQuietly(ctx context.Context, params ConnectionParams, event core.EventType) {
	err := e.EmitEvent(ctx, core.EventPayload{
		Source: params.Source,
		Data: map[string]any{
			"entityId": params.EntityID,
			"roomId":   params.RoomID,
			"worldId":  params.WorldID,
		},
	}, event)
	if err != nil {
		e.logger.Warn("failed to emit event", "event", event, "error", err)
	}
}

func names(candidates ...string) []string {
	var out []string

	for _, n := range candidates {
		if n != "" && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}

	return out
}
