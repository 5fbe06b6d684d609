package usecase

import (
	"sort"

	"github.com/kirillkom/email-thread-rag/internal/core/domain"
	"github.com/kirillkom/email-thread-rag/internal/core/ports"
)

const (
	defaultTopK           = 8
	defaultLexicalWeight  = 0.6
	defaultSemanticWeight = 0.4
)

type rankParams struct {
	ThreadID            string
	SearchOutsideThread bool
	TopK                int
	LexicalWeight       float64
	SemanticWeight      float64
}

func (p rankParams) normalize() rankParams {
	out := p
	if out.TopK <= 0 {
		out.TopK = defaultTopK
	}
	if out.LexicalWeight <= 0 && out.SemanticWeight <= 0 {
		out.LexicalWeight = defaultLexicalWeight
		out.SemanticWeight = defaultSemanticWeight
	}
	return out
}

// rankHybrid scores every corpus record against one query and returns
// the top-K candidates by combined score.
//
// Normalization happens over the FULL corpus before the thread filter
// is applied: lexical scores are divided by the corpus-wide maximum
// (left raw when that maximum is zero or negative), semantic cosine
// similarity is mapped into [0,1] via (s+1)/2. Renormalizing over the
// filtered subset would change thread-scoped scores; the corpus-wide
// scale is kept so scores stay comparable across threads.
func rankHybrid(
	corpus ports.CorpusIndex,
	lexScores []float64,
	queryVector []float32,
	params rankParams,
) []domain.RetrievedChunk {
	params = params.normalize()

	n := corpus.Count()
	if n == 0 || len(lexScores) != n {
		return nil
	}

	lexMax := lexScores[0]
	for _, s := range lexScores[1:] {
		if s > lexMax {
			lexMax = s
		}
	}

	lexNorm := make([]float64, n)
	semNorm := make([]float64, n)
	for i := 0; i < n; i++ {
		if lexMax > 0 {
			lexNorm[i] = lexScores[i] / lexMax
		} else {
			lexNorm[i] = lexScores[i]
		}
		semNorm[i] = (dotProduct(corpus.Record(i).Vector, queryVector) + 1.0) / 2.0
	}

	candidates := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if !params.SearchOutsideThread && corpus.Record(i).Chunk.ThreadID != params.ThreadID {
			continue
		}
		candidates = append(candidates, i)
	}

	combined := make(map[int]float64, len(candidates))
	for _, i := range candidates {
		combined[i] = params.LexicalWeight*lexNorm[i] + params.SemanticWeight*semNorm[i]
	}

	// Candidates start in corpus index order; a stable sort keeps that
	// order as the tie-break.
	sort.SliceStable(candidates, func(a, b int) bool {
		return combined[candidates[a]] > combined[candidates[b]]
	})

	if len(candidates) > params.TopK {
		candidates = candidates[:params.TopK]
	}

	out := make([]domain.RetrievedChunk, 0, len(candidates))
	for _, i := range candidates {
		c := corpus.Record(i).Chunk
		out = append(out, domain.RetrievedChunk{
			ChunkID:       c.ChunkID,
			ThreadID:      c.ThreadID,
			MessageID:     c.MessageID,
			PageNo:        c.PageNo,
			Source:        c.Source,
			Text:          c.Text,
			FromAddr:      c.FromAddr,
			ToAddr:        c.ToAddr,
			Date:          c.Date,
			ScoreBM25:     lexNorm[i],
			ScoreSem:      semNorm[i],
			ScoreCombined: combined[i],
		})
	}
	return out
}

func dotProduct(a []float32, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
