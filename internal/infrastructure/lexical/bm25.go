// Package lexical provides the BM25 index the corpus store scores
// queries against. Documents are tokenized once at build time; the
// index is read-only afterwards and safe for concurrent use.
package lexical

import "math"

const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// Index is an Okapi BM25 index over a fixed document set.
type Index struct {
	k1 float64
	b  float64

	n        int
	avgLen   float64
	docLen   []float64
	termFreq []map[string]int
	docFreq  map[string]int
}

// NewIndex builds the index from pre-tokenized documents. Document
// order is preserved: Scores returns one value per input document in
// the same order.
func NewIndex(docs [][]string, k1, b float64) *Index {
	if k1 <= 0 {
		k1 = DefaultK1
	}
	if b < 0 || b > 1 {
		b = DefaultB
	}

	idx := &Index{
		k1:       k1,
		b:        b,
		n:        len(docs),
		docLen:   make([]float64, len(docs)),
		termFreq: make([]map[string]int, len(docs)),
		docFreq:  make(map[string]int),
	}

	var totalLen float64
	for i, tokens := range docs {
		tf := make(map[string]int, len(tokens))
		for _, token := range tokens {
			tf[token]++
		}
		idx.termFreq[i] = tf
		idx.docLen[i] = float64(len(tokens))
		totalLen += float64(len(tokens))
		for token := range tf {
			idx.docFreq[token]++
		}
	}
	if idx.n > 0 {
		idx.avgLen = totalLen / float64(idx.n)
	}
	return idx
}

// Scores computes the BM25 relevance of every document for the given
// query tokens. Unknown tokens contribute nothing; a query with no
// known tokens yields all zeros.
func (idx *Index) Scores(tokens []string) []float64 {
	scores := make([]float64, idx.n)
	if idx.n == 0 || len(tokens) == 0 {
		return scores
	}

	for _, token := range tokens {
		df, ok := idx.docFreq[token]
		if !ok {
			continue
		}
		idf := math.Log(1.0 + (float64(idx.n)-float64(df)+0.5)/(float64(df)+0.5))
		for i := 0; i < idx.n; i++ {
			tf := float64(idx.termFreq[i][token])
			if tf == 0 {
				continue
			}
			norm := 1.0 - idx.b + idx.b*idx.docLen[i]/idx.avgLen
			scores[i] += idf * tf * (idx.k1 + 1.0) / (tf + idx.k1*norm)
		}
	}
	return scores
}
