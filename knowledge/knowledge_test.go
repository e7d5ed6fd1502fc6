package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/plugmesh/core"
	"github.com/hupe1980/plugmesh/internal/testutil"
	"github.com/hupe1980/plugmesh/memory"
)

func newFixture(t *testing.T) (*Service, *testutil.Runtime, *memory.InMemoryStore) {
	t.Helper()

	db := memory.NewInMemoryStore()
	require.NoError(t, db.EnsureEmbeddingDimension(context.Background(), testutil.Dim))

	rt := testutil.NewRuntime("agent-1")
	rt.DB = db
	rt.ModelFn, _ = testutil.FakeEmbedding()

	svc := NewService(func(o *Options) {
		o.Splitter = WordSplitter{}
		o.Chunking = ChunkOptions{TargetTokens: 1, OverlapTokens: 0, ModelContextSize: 10}
	})

	return svc, rt, db
}

func TestAddKnowledgeFragments(t *testing.T) {
	svc, rt, db := newFixture(t)
	ctx := context.Background()

	item := core.KnowledgeItem{ID: "doc-1", Content: core.Content{Text: "a b c"}}
	require.NoError(t, svc.AddKnowledge(ctx, rt, item, svc.ChunkOptions()))

	doc, err := db.GetMemoryByID(ctx, "doc-1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, core.MemoryTypeDocument, doc.Metadata.Type)

	for i, text := range []string{"a", "b", "c"} {
		frag, err := db.GetMemoryByID(ctx, FragmentID("doc-1", i))
		require.NoError(t, err)
		require.NotNil(t, frag, "fragment %d", i)
		assert.Equal(t, text, frag.Content.Text)
		assert.Equal(t, core.MemoryTypeFragment, frag.Metadata.Type)
		assert.Equal(t, "doc-1", frag.Metadata.DocumentID)
		assert.Equal(t, i, frag.Metadata.Position)
		assert.Len(t, frag.Embedding, testutil.Dim)
	}

	missing, err := db.GetMemoryByID(ctx, FragmentID("doc-1", 3))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAddKnowledgeTargetClampedToContext(t *testing.T) {
	svc, rt, db := newFixture(t)
	ctx := context.Background()

	item := core.KnowledgeItem{ID: "doc-2", Content: core.Content{Text: "w1 w2 w3 w4"}}
	require.NoError(t, svc.AddKnowledge(ctx, rt, item, ChunkOptions{TargetTokens: 100, ModelContextSize: 2}))

	first, err := db.GetMemoryByID(ctx, FragmentID("doc-2", 0))
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "w1 w2", first.Content.Text)
}

func TestProcessCharacterKnowledgeIdempotent(t *testing.T) {
	svc, rt, db := newFixture(t)
	ctx := context.Background()

	handler, calls := testutil.FakeEmbedding()
	rt.ModelFn = handler

	items := []string{"the sky is blue"}
	require.NoError(t, svc.ProcessCharacterKnowledge(ctx, rt, items))
	first := calls.Load()
	assert.Equal(t, int32(4), first)

	require.NoError(t, svc.ProcessCharacterKnowledge(ctx, rt, items))
	assert.Equal(t, first, calls.Load())

	id := core.DeterministicID("agent-1", "the sky is blue")
	docs, err := db.GetMemories(ctx, core.MemoryQuery{TableName: core.TableDocuments, AgentID: "agent-1"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, id, docs[0].ID)
}

func TestProcessCharacterKnowledgeAbortsOnFailure(t *testing.T) {
	svc, rt, _ := newFixture(t)
	rt.ModelFn = nil

	err := svc.ProcessCharacterKnowledge(context.Background(), rt, []string{"x", "y"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestGetKnowledgeEmptyMessageSkipsEmbedding(t *testing.T) {
	svc, rt, _ := newFixture(t)

	handler, calls := testutil.FakeEmbedding()
	rt.ModelFn = handler

	items, err := svc.GetKnowledge(context.Background(), rt, testutil.NewMessage("room-1", "   "))
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.Zero(t, calls.Load())
}

func TestGetKnowledgeDedupesDocuments(t *testing.T) {
	svc, rt, _ := newFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.AddKnowledge(ctx, rt,
		core.KnowledgeItem{ID: "cats", Content: core.Content{Text: "cats purr cats purr"}},
		ChunkOptions{TargetTokens: 2}))
	require.NoError(t, svc.AddKnowledge(ctx, rt,
		core.KnowledgeItem{ID: "dogs", Content: core.Content{Text: "dogs bark"}},
		ChunkOptions{TargetTokens: 2}))

	items, err := svc.GetKnowledge(ctx, rt, testutil.NewMessage("room-1", "cats purr"))
	require.NoError(t, err)
	require.NotEmpty(t, items)
	assert.Equal(t, "cats", items[0].ID)

	seen := map[string]int{}
	for _, it := range items {
		seen[it.ID]++
	}

	for id, n := range seen {
		assert.Equal(t, 1, n, "document %s returned more than once", id)
	}
}
