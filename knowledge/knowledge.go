// Package knowledge ingests long-form text as a document plus searchable
// fragments and retrieves documents relevant to a message.
//
// A document is stored once in the documents table. Its text is split into
// overlapping fragments that are embedded and stored in the knowledge table
// with the parent document id and a position starting at 0. Ids are derived
// deterministically so re-ingesting identical text is a no-op.
package knowledge

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hupe1980/plugmesh/core"
	"github.com/hupe1980/plugmesh/logging"
	"github.com/hupe1980/plugmesh/model"
	"github.com/hupe1980/plugmesh/observability"
)

// Defaults for fragment sizing and retrieval.
const (
	DefaultTargetTokens     = 3000
	DefaultOverlapTokens    = 200
	DefaultModelContextSize = 4096
	DefaultMatchCount       = 5
	DefaultMatchThreshold   = 0.1
)

// ChunkOptions controls fragment sizing for one ingestion.
type ChunkOptions struct {
	TargetTokens     int
	OverlapTokens    int
	ModelContextSize int
}

// DefaultChunkOptions returns the default fragment sizing.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{
		TargetTokens:     DefaultTargetTokens,
		OverlapTokens:    DefaultOverlapTokens,
		ModelContextSize: DefaultModelContextSize,
	}
}

// Options configures a Service.
type Options struct {
	// Splitter defaults to a TokenSplitter, or WordSplitter when the
	// tokenizer cannot be loaded.
	Splitter       Splitter
	Chunking       ChunkOptions
	MatchCount     int
	MatchThreshold float32
	Logger         logging.Logger
}

// Service implements ingestion and retrieval.
type Service struct {
	opts Options
	once sync.Once
}

// NewService creates a knowledge service.
func NewService(optFns ...func(o *Options)) *Service {
	opts := Options{
		Chunking:       DefaultChunkOptions(),
		MatchCount:     DefaultMatchCount,
		MatchThreshold: DefaultMatchThreshold,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Service{opts: opts}
}

// splitter loads the default TokenSplitter on first use, since fetching the
// encoding may hit the network.
func (s *Service) splitter() Splitter {
	s.once.Do(func() {
		if s.opts.Splitter != nil {
			return
		}

		ts, err := NewTokenSplitter()
		if err != nil {
			s.opts.Logger.Warn("tokenizer unavailable, splitting on words", "error", err)
			s.opts.Splitter = WordSplitter{}

			return
		}

		s.opts.Splitter = ts
	})

	return s.opts.Splitter
}

// ChunkOptions returns the configured default sizing.
func (s *Service) ChunkOptions() ChunkOptions { return s.opts.Chunking }

// FragmentID derives the id of the fragment at position of documentID.
func FragmentID(documentID string, position int) string {
	return core.DeterministicID(documentID, "fragment", strconv.Itoa(position))
}

// AddKnowledge stores item as a document and its text as embedded fragments.
func (s *Service) AddKnowledge(ctx context.Context, rt core.Runtime, item core.KnowledgeItem, opts ChunkOptions) error {
	db := rt.Adapter()
	if db == nil {
		return fmt.Errorf("no database adapter bound")
	}

	if item.ID == "" {
		item.ID = core.DeterministicID(rt.AgentID(), item.Content.Text)
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanKnowledge,
		attribute.String(observability.AttrAgentID, rt.AgentID()),
		attribute.String(observability.AttrName, item.ID))
	defer span.End()

	err := s.addKnowledge(ctx, rt, db, item, opts)
	observability.MarkSpanResult(span, err)

	return err
}

func (s *Service) addKnowledge(ctx context.Context, rt core.Runtime, db core.DatabaseAdapter, item core.KnowledgeItem, opts ChunkOptions) error {
	now := time.Now()
	agentID := rt.AgentID()

	doc := &core.Memory{
		ID:        item.ID,
		AgentID:   agentID,
		EntityID:  agentID,
		RoomID:    agentID,
		CreatedAt: now,
		Content:   item.Content,
		Metadata:  &core.MemoryMetadata{Type: core.MemoryTypeDocument, Timestamp: now},
	}
	if _, err := db.CreateMemory(ctx, doc, core.TableDocuments, true); err != nil {
		return fmt.Errorf("failed to store document %s: %w", item.ID, err)
	}

	target := opts.TargetTokens
	if opts.ModelContextSize > 0 && target > opts.ModelContextSize {
		target = opts.ModelContextSize
	}

	chunks, err := s.splitter().Split(item.Content.Text, target, opts.OverlapTokens)
	if err != nil {
		return fmt.Errorf("failed to split document %s: %w", item.ID, err)
	}

	for i, chunk := range chunks {
		res, err := rt.UseModel(ctx, core.ModelTypeTextEmbedding, core.ModelParams{core.ParamText: chunk})
		if err != nil {
			return fmt.Errorf("failed to embed fragment %d of %s: %w", i, item.ID, err)
		}

		emb, err := model.AsEmbedding(res)
		if err != nil {
			return err
		}

		fragment := &core.Memory{
			ID:        FragmentID(item.ID, i),
			AgentID:   agentID,
			EntityID:  agentID,
			RoomID:    agentID,
			CreatedAt: now,
			Content:   core.Content{Text: chunk, Source: item.Content.Source},
			Embedding: emb,
			Metadata: &core.MemoryMetadata{
				Type:       core.MemoryTypeFragment,
				DocumentID: item.ID,
				Position:   i,
				Timestamp:  now,
			},
		}
		if _, err := db.CreateMemory(ctx, fragment, core.TableKnowledge, true); err != nil {
			return fmt.Errorf("failed to store fragment %d of %s: %w", i, item.ID, err)
		}
	}

	rt.Logger().Debug("knowledge added", "document_id", item.ID, "fragments", len(chunks))

	return nil
}

// GetKnowledge returns the documents whose fragments best match the message
// text. A message without text yields an empty result without embedding.
func (s *Service) GetKnowledge(ctx context.Context, rt core.Runtime, message *core.Memory) ([]core.KnowledgeItem, error) {
	if message == nil || strings.TrimSpace(message.Content.Text) == "" {
		s.opts.Logger.Warn("invalid message for knowledge query")
		return []core.KnowledgeItem{}, nil
	}

	db := rt.Adapter()
	if db == nil {
		return nil, fmt.Errorf("no database adapter bound")
	}

	res, err := rt.UseModel(ctx, core.ModelTypeTextEmbedding, core.ModelParams{core.ParamText: message.Content.Text})
	if err != nil {
		return nil, err
	}

	emb, err := model.AsEmbedding(res)
	if err != nil {
		return nil, err
	}

	fragments, err := db.SearchMemories(ctx, core.SearchParams{
		TableName:      core.TableKnowledge,
		Embedding:      emb,
		AgentID:        rt.AgentID(),
		Count:          s.opts.MatchCount,
		MatchThreshold: s.opts.MatchThreshold,
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(fragments))
	items := make([]core.KnowledgeItem, 0, len(fragments))

	for _, f := range fragments {
		if f.Metadata == nil || f.Metadata.DocumentID == "" {
			continue
		}

		docID := f.Metadata.DocumentID
		if _, dup := seen[docID]; dup {
			continue
		}

		seen[docID] = struct{}{}

		doc, err := db.GetMemoryByID(ctx, docID)
		if err != nil {
			return nil, err
		}

		if doc == nil {
			continue
		}

		items = append(items, core.KnowledgeItem{ID: doc.ID, Content: doc.Content})
	}

	return items, nil
}

// ProcessCharacterKnowledge ingests static knowledge strings. Items already
// stored are skipped. The first failure aborts the remaining items.
func (s *Service) ProcessCharacterKnowledge(ctx context.Context, rt core.Runtime, items []string) error {
	db := rt.Adapter()
	if db == nil {
		return fmt.Errorf("no database adapter bound")
	}

	for _, text := range items {
		id := core.DeterministicID(rt.AgentID(), text)

		existing, err := db.GetMemoryByID(ctx, id)
		if err != nil {
			s.opts.Logger.Error("failed to look up knowledge", "document_id", id, "error", err)
			return err
		}

		if existing != nil {
			continue
		}

		if err := s.AddKnowledge(ctx, rt, core.KnowledgeItem{ID: id, Content: core.Content{Text: text}}, s.opts.Chunking); err != nil {
			s.opts.Logger.Error("failed to process character knowledge", "document_id", id, "error", err)
			return err
		}
	}

	return nil
}
