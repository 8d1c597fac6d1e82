// Package rag composes chunking, embedding, storage, search, and
// generation into the retrieval pipeline.
//
// Indexing flows Chunker → embedding client → chunk store and replaces a
// document's chunk set atomically. Querying flows result cache → query
// embedding → vector search → optional hybrid fusion, and optionally feeds
// the ranked passages to a generation provider, streaming or not.
//
// The engine depends only on the small consumer-defined interfaces in
// this package; concrete providers and the Postgres store are injected at
// construction time.
package rag
