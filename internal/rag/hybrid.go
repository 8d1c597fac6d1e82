package rag

import (
	"sort"

	"github.com/pensieve-ai/pensieve/internal/store"
)

// chunkRef identifies one chunk across the two result lists.
type chunkRef struct {
	documentID string
	index      int
}

// fuse merges vector and keyword results into one ranking.
//
// combined = w*similarity + (1-w)*keywordScore, with a missing component
// scored 0. The sort is stable and descending on combined score, so
// chunks with equal scores keep their vector rank. Keyword-only hits are
// appended after the vector base before sorting, which places them by
// combined score like everything else.
func fuse(vec, kw []store.SearchResult, vectorWeight float64) []SearchResult {
	kwScores := make(map[chunkRef]store.SearchResult, len(kw))
	for _, r := range kw {
		kwScores[chunkRef{r.Chunk.DocumentID, r.Chunk.Index}] = r
	}

	results := make([]SearchResult, 0, len(vec)+len(kw))
	seen := make(map[chunkRef]struct{}, len(vec))

	for _, r := range vec {
		ref := chunkRef{r.Chunk.DocumentID, r.Chunk.Index}
		seen[ref] = struct{}{}
		res := SearchResult{
			DocumentID: r.Chunk.DocumentID,
			ChunkIndex: r.Chunk.Index,
			Content:    r.Chunk.Content,
			Metadata:   r.Chunk.Metadata,
			Similarity: r.Similarity,
			IsPublic:   r.IsPublic,
		}
		if k, ok := kwScores[ref]; ok {
			res.KeywordScore = k.Similarity
		}
		res.CombinedScore = vectorWeight*res.Similarity + (1-vectorWeight)*res.KeywordScore
		results = append(results, res)
	}

	for _, r := range kw {
		ref := chunkRef{r.Chunk.DocumentID, r.Chunk.Index}
		if _, ok := seen[ref]; ok {
			continue
		}
		results = append(results, SearchResult{
			DocumentID:    r.Chunk.DocumentID,
			ChunkIndex:    r.Chunk.Index,
			Content:       r.Chunk.Content,
			Metadata:      r.Chunk.Metadata,
			KeywordScore:  r.Similarity,
			CombinedScore: (1 - vectorWeight) * r.Similarity,
			IsPublic:      r.IsPublic,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CombinedScore > results[j].CombinedScore
	})
	return results
}
