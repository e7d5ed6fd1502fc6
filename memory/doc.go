// Package memory provides an in-process reference implementation of
// core.DatabaseAdapter. Records live in maps guarded by a RWMutex; memories
// carrying embeddings are additionally indexed in a chromem-go collection per
// table so SearchMemories performs cosine similarity search.
//
// It is suitable for tests, demos and single-process agents. Durable
// deployments plug in their own adapter through a plugin.
package memory
