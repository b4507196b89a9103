// Package memory maintains a metadata index over markdown notes and ranks them.
//
// Invariants:
// - Every Index handed out by a Store has Stats.TotalFiles == len(Entries).
// - Upserts replace the whole entry for a path; there is no partial merge.
// - Search only considers entries that carry an embedding.
// - Rebuild, upsert and search emit tracing spans and metrics.
//
// Usage:
//
//	repo := memory.NewFileRepository("/notes/memory-index.json", logger)
//	store, _ := memory.NewStore(memory.StoreConfig{Repository: repo, Source: src, Logger: logger})
//	summary, _ := store.Rebuild(ctx, memory.RebuildOptions{Embedder: provider})
//	engine := memory.NewSearchEngine(repo, provider, logger)
//	results, _ := engine.Search(ctx, "kubernetes debugging", memory.DefaultSearchOptions())
//	_, _ = summary, results
package memory
