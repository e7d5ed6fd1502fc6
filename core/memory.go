package core

import "time"

// Memory table names used by the runtime.
const (
	TableMessages  = "messages"
	TableDocuments = "documents"
	TableKnowledge = "knowledge"
)

// MemoryType tags what a memory represents.
type MemoryType string

const (
	MemoryTypeMessage  MemoryType = "message"
	MemoryTypeDocument MemoryType = "document"
	MemoryTypeFragment MemoryType = "fragment"
)

// Content is the payload of a memory.
type Content struct {
	Text      string   `json:"text,omitempty"`
	Thought   string   `json:"thought,omitempty"`
	InReplyTo string   `json:"inReplyTo,omitempty"`
	Actions   []string `json:"actions,omitempty"`
	Source    string   `json:"source,omitempty"`
}

// MemoryMetadata carries structural information. Fragments reference their
// parent document through DocumentID; documents do not track their fragments.
type MemoryMetadata struct {
	Type       MemoryType `json:"type,omitempty"`
	DocumentID string     `json:"documentId,omitempty"`
	Position   int        `json:"position"`
	Source     string     `json:"source,omitempty"`
	Timestamp  time.Time  `json:"timestamp,omitempty"`
}

// Memory is a unit of recorded content.
type Memory struct {
	ID         string          `json:"id"`
	EntityID   string          `json:"entityId"`
	AgentID    string          `json:"agentId"`
	RoomID     string          `json:"roomId"`
	CreatedAt  time.Time       `json:"createdAt"`
	Content    Content         `json:"content"`
	Metadata   *MemoryMetadata `json:"metadata,omitempty"`
	Embedding  []float32       `json:"embedding,omitempty"`
	Similarity float32         `json:"similarity,omitempty"`
}

// Entity is a participant identity.
type Entity struct {
	ID       string         `json:"id"`
	Names    []string       `json:"names"`
	AgentID  string         `json:"agentId"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ChannelType describes the kind of conversation a room represents.
type ChannelType string

const (
	ChannelTypeSelf  ChannelType = "SELF"
	ChannelTypeDM    ChannelType = "DM"
	ChannelTypeGroup ChannelType = "GROUP"
	ChannelTypeAPI   ChannelType = "API"
)

// Room is a conversation channel.
type Room struct {
	ID        string      `json:"id"`
	Name      string      `json:"name,omitempty"`
	AgentID   string      `json:"agentId,omitempty"`
	Source    string      `json:"source"`
	Type      ChannelType `json:"type"`
	ChannelID string      `json:"channelId,omitempty"`
	ServerID  string      `json:"serverId,omitempty"`
	WorldID   string      `json:"worldId,omitempty"`
}

// World is a server-level grouping of rooms.
type World struct {
	ID       string         `json:"id"`
	Name     string         `json:"name,omitempty"`
	AgentID  string         `json:"agentId"`
	ServerID string         `json:"serverId"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Agent is the persisted record of a character.
type Agent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
}

// LogEntry is a structured audit record.
type LogEntry struct {
	EntityID string         `json:"entityId"`
	RoomID   string         `json:"roomId,omitempty"`
	Type     string         `json:"type"`
	Body     map[string]any `json:"body"`
}

// SearchParams scopes a similarity search over memories.
type SearchParams struct {
	TableName      string
	Embedding      []float32
	RoomID         string
	AgentID        string
	Count          int
	MatchThreshold float32
}

// MemoryQuery scopes a listing of memories, newest first.
type MemoryQuery struct {
	TableName string
	RoomID    string
	AgentID   string
	Count     int
}
