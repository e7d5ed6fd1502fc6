package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/hupe1980/plugmesh/core"
)

type storedMemory struct {
	table string
	mem   core.Memory
}

// InMemoryStore is a process-local DatabaseAdapter.
//
// Concurrency: protected by RWMutex. The chromem-go collections carry their
// own locking.
type InMemoryStore struct {
	mu           sync.RWMutex
	agents       map[string]core.Agent
	entities     map[string]core.Entity
	rooms        map[string]core.Room
	worlds       map[string]core.World
	participants map[string][]string // roomID -> entityIDs
	memories     map[string]storedMemory
	logs         []core.LogEntry
	dimension    int

	db          *chromem.DB
	collections map[string]*chromem.Collection
}

var _ core.DatabaseAdapter = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		agents:       make(map[string]core.Agent),
		entities:     make(map[string]core.Entity),
		rooms:        make(map[string]core.Room),
		worlds:       make(map[string]core.World),
		participants: make(map[string][]string),
		memories:     make(map[string]storedMemory),
		db:           chromem.NewDB(),
		collections:  make(map[string]*chromem.Collection),
	}
}

// errNoEmbedder is returned by the collection embedding func. Documents are
// always added with precomputed embeddings.
var errNoEmbedder = errors.New("memory: embeddings must be precomputed")

func noEmbed(context.Context, string) ([]float32, error) { return nil, errNoEmbedder }

// Init implements core.DatabaseAdapter.
func (s *InMemoryStore) Init(context.Context) error { return nil }

// Close implements core.DatabaseAdapter.
func (s *InMemoryStore) Close(context.Context) error { return nil }

// EnsureAgentExists returns the stored agent, creating it when absent.
func (s *InMemoryStore) EnsureAgentExists(_ context.Context, agent core.Agent) (*core.Agent, error) {
	if agent.ID == "" {
		return nil, fmt.Errorf("agent id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.agents[agent.ID]
	if !ok {
		if agent.CreatedAt.IsZero() {
			agent.CreatedAt = time.Now()
		}

		s.agents[agent.ID] = agent
		existing = agent
	}

	return &existing, nil
}

// GetEntityByID returns nil when the entity does not exist.
func (s *InMemoryStore) GetEntityByID(_ context.Context, id string) (*core.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	if !ok {
		return nil, nil
	}

	return &e, nil
}

// CreateEntity stores entity, replacing any entity with the same id.
func (s *InMemoryStore) CreateEntity(_ context.Context, entity core.Entity) error {
	if entity.ID == "" {
		return fmt.Errorf("entity id is required")
	}

	s.mu.Lock()
	s.entities[entity.ID] = entity
	s.mu.Unlock()

	return nil
}

// GetRoom returns nil when the room does not exist.
func (s *InMemoryStore) GetRoom(_ context.Context, id string) (*core.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[id]
	if !ok {
		return nil, nil
	}

	return &r, nil
}

// CreateRoom stores room.
func (s *InMemoryStore) CreateRoom(_ context.Context, room core.Room) error {
	if room.ID == "" {
		return fmt.Errorf("room id is required")
	}

	s.mu.Lock()
	s.rooms[room.ID] = room
	s.mu.Unlock()

	return nil
}

// GetWorld returns nil when the world does not exist.
func (s *InMemoryStore) GetWorld(_ context.Context, id string) (*core.World, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.worlds[id]
	if !ok {
		return nil, nil
	}

	return &w, nil
}

// CreateWorld stores world.
func (s *InMemoryStore) CreateWorld(_ context.Context, world core.World) error {
	if world.ID == "" {
		return fmt.Errorf("world id is required")
	}

	s.mu.Lock()
	s.worlds[world.ID] = world
	s.mu.Unlock()

	return nil
}

// GetParticipantsForRoom returns the entity ids participating in roomID.
func (s *InMemoryStore) GetParticipantsForRoom(_ context.Context, roomID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.participants[roomID]...), nil
}

// AddParticipant adds entityID to roomID. Adding an existing participant is a no-op.
func (s *InMemoryStore) AddParticipant(_ context.Context, entityID, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[roomID]; !ok {
		return &core.NotFoundError{Kind: "room", Key: roomID}
	}

	for _, id := range s.participants[roomID] {
		if id == entityID {
			return nil
		}
	}

	s.participants[roomID] = append(s.participants[roomID], entityID)

	return nil
}

// Log appends an audit entry.
func (s *InMemoryStore) Log(_ context.Context, entry core.LogEntry) error {
	s.mu.Lock()
	s.logs = append(s.logs, entry)
	s.mu.Unlock()

	return nil
}

// Logs returns a copy of the recorded audit entries, optionally filtered by type.
func (s *InMemoryStore) Logs(entryType string) []core.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.LogEntry, 0, len(s.logs))
	for _, l := range s.logs {
		if entryType == "" || l.Type == entryType {
			out = append(out, l)
		}
	}

	return out
}

// GetMemoryByID returns nil when the memory does not exist.
func (s *InMemoryStore) GetMemoryByID(_ context.Context, id string) (*core.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sm, ok := s.memories[id]
	if !ok {
		return nil, nil
	}

	m := sm.mem

	return &m, nil
}

// GetMemories lists memories of a table, newest first.
func (s *InMemoryStore) GetMemories(_ context.Context, q core.MemoryQuery) ([]*core.Memory, error) {
	s.mu.RLock()
	out := make([]*core.Memory, 0)

	for _, sm := range s.memories {
		if sm.table != q.TableName {
			continue
		}

		if q.RoomID != "" && sm.mem.RoomID != q.RoomID {
			continue
		}

		if q.AgentID != "" && sm.mem.AgentID != q.AgentID {
			continue
		}

		m := sm.mem
		out = append(out, &m)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}

		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if q.Count > 0 && len(out) > q.Count {
		out = out[:q.Count]
	}

	return out, nil
}

// CreateMemory stores mem in tableName and returns its id. A missing id is
// generated. With unique set, an existing memory with the same id is kept and
// its id returned.
func (s *InMemoryStore) CreateMemory(ctx context.Context, mem *core.Memory, tableName string, unique bool) (string, error) {
	if mem == nil {
		return "", fmt.Errorf("memory is nil")
	}

	m := *mem
	if m.ID == "" {
		m.ID = core.NewID()
	}

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	s.mu.Lock()
	if _, exists := s.memories[m.ID]; exists && unique {
		s.mu.Unlock()
		return m.ID, nil
	}

	if len(m.Embedding) > 0 && s.dimension > 0 && len(m.Embedding) != s.dimension {
		s.mu.Unlock()
		return "", fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(m.Embedding), s.dimension)
	}

	s.memories[m.ID] = storedMemory{table: tableName, mem: m}

	var col *chromem.Collection
	if len(m.Embedding) > 0 {
		c, err := s.collection(tableName)
		if err != nil {
			delete(s.memories, m.ID)
			s.mu.Unlock()

			return "", err
		}

		col = c
	}
	s.mu.Unlock()

	if col != nil {
		doc := chromem.Document{
			ID:        m.ID,
			Content:   m.Content.Text,
			Embedding: append([]float32(nil), m.Embedding...),
			Metadata:  map[string]string{"roomId": m.RoomID, "agentId": m.AgentID},
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return "", fmt.Errorf("failed to index memory: %w", err)
		}
	}

	return m.ID, nil
}

// collection must be called with s.mu held.
func (s *InMemoryStore) collection(table string) (*chromem.Collection, error) {
	if c, ok := s.collections[table]; ok {
		return c, nil
	}

	c, err := s.db.GetOrCreateCollection(table, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", table, err)
	}

	s.collections[table] = c

	return c, nil
}

// SearchMemories returns memories of params.TableName whose cosine similarity
// to params.Embedding is at least params.MatchThreshold, most similar first.
func (s *InMemoryStore) SearchMemories(ctx context.Context, params core.SearchParams) ([]*core.Memory, error) {
	if len(params.Embedding) == 0 {
		return nil, fmt.Errorf("search embedding is empty")
	}

	s.mu.RLock()
	col, ok := s.collections[params.TableName]
	s.mu.RUnlock()

	if !ok || col.Count() == 0 {
		return []*core.Memory{}, nil
	}

	n := params.Count
	if n <= 0 {
		n = 10
	}

	if total := col.Count(); n > total {
		n = total
	}

	where := map[string]string{}
	if params.RoomID != "" {
		where["roomId"] = params.RoomID
	}

	if params.AgentID != "" {
		where["agentId"] = params.AgentID
	}

	results, err := col.QueryEmbedding(ctx, params.Embedding, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to search memories: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.Memory, 0, len(results))
	for _, r := range results {
		if r.Similarity < params.MatchThreshold {
			continue
		}

		sm, ok := s.memories[r.ID]
		if !ok {
			continue
		}

		m := sm.mem
		m.Similarity = r.Similarity
		out = append(out, &m)
	}

	return out, nil
}

// EnsureEmbeddingDimension fixes the embedding dimension accepted by CreateMemory.
func (s *InMemoryStore) EnsureEmbeddingDimension(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid embedding dimension %d", dimension)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension != 0 && s.dimension != dimension && len(s.collections) > 0 {
		return fmt.Errorf("embedding dimension already set to %d", s.dimension)
	}

	s.dimension = dimension

	return nil
}
