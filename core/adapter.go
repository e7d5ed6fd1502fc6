package core

import "context"

// DatabaseAdapter persists entities, rooms, worlds, memories and audit logs.
// Implementations report missing records with a nil result and a nil error;
// every other failure is returned unmodified to the caller.
type DatabaseAdapter interface {
	Init(ctx context.Context) error
	Close(ctx context.Context) error

	EnsureAgentExists(ctx context.Context, agent Agent) (*Agent, error)
	GetEntityByID(ctx context.Context, id string) (*Entity, error)
	CreateEntity(ctx context.Context, entity Entity) error

	GetRoom(ctx context.Context, id string) (*Room, error)
	CreateRoom(ctx context.Context, room Room) error
	GetWorld(ctx context.Context, id string) (*World, error)
	CreateWorld(ctx context.Context, world World) error

	GetParticipantsForRoom(ctx context.Context, roomID string) ([]string, error)
	AddParticipant(ctx context.Context, entityID, roomID string) error

	Log(ctx context.Context, entry LogEntry) error

	GetMemoryByID(ctx context.Context, id string) (*Memory, error)
	GetMemories(ctx context.Context, query MemoryQuery) ([]*Memory, error)
	CreateMemory(ctx context.Context, mem *Memory, tableName string, unique bool) (string, error)
	SearchMemories(ctx context.Context, params SearchParams) ([]*Memory, error)

	EnsureEmbeddingDimension(ctx context.Context, dimension int) error
}
