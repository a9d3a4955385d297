// Package retrieval implements hybrid document retrieval: dense vector
// search fused with a lexical BM25 index via weighted reciprocal rank
// fusion, plus optional LLM query expansion.
package retrieval

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/alti-global/prism/internal/models"
)

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// BM25Index is an in-memory lexical index over one collection's passages.
// It is built once at warmup and read-only afterwards, so queries take only
// a read lock.
type BM25Index struct {
	mu sync.RWMutex

	passages []models.Passage
	docFreq  map[string]int   // term -> number of docs containing it
	termFreq []map[string]int // per doc: term -> count
	docLen   []int
	avgLen   float64
	built    bool
}

// NewBM25Index creates an empty index.
func NewBM25Index() *BM25Index {
	return &BM25Index{
		docFreq: make(map[string]int),
	}
}

// Build replaces the index contents with the given passages.
func (idx *BM25Index) Build(passages []models.Passage) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.passages = make([]models.Passage, len(passages))
	copy(idx.passages, passages)
	idx.docFreq = make(map[string]int)
	idx.termFreq = make([]map[string]int, len(passages))
	idx.docLen = make([]int, len(passages))

	totalLen := 0
	for i, p := range passages {
		terms := Tokenize(p.Text)
		tf := make(map[string]int, len(terms))
		for _, t := range terms {
			tf[t]++
		}
		for t := range tf {
			idx.docFreq[t]++
		}
		idx.termFreq[i] = tf
		idx.docLen[i] = len(terms)
		totalLen += len(terms)
	}

	if len(passages) > 0 {
		idx.avgLen = float64(totalLen) / float64(len(passages))
	}
	idx.built = true
}

// Ready reports whether Build has run.
func (idx *BM25Index) Ready() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.built
}

// Size returns the number of indexed passages.
func (idx *BM25Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.passages)
}

// Search scores the query against every indexed passage and returns the top
// k, lexical scores normalized by the batch maximum so they land in [0,1].
func (idx *BM25Index) Search(query string, k int) []models.Passage {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.built || len(idx.passages) == 0 || k <= 0 {
		return nil
	}

	terms := Tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	n := float64(len(idx.passages))
	type scored struct {
		i     int
		score float64
	}
	results := make([]scored, 0, len(idx.passages))

	for i := range idx.passages {
		var score float64
		for _, t := range terms {
			tf := float64(idx.termFreq[i][t])
			if tf == 0 {
				continue
			}
			df := float64(idx.docFreq[t])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			norm := tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*float64(idx.docLen[i])/idx.avgLen))
			score += idf * norm
		}
		if score > 0 {
			results = append(results, scored{i: i, score: score})
		}
	}
	if len(results) == 0 {
		return nil
	}

	sort.Slice(results, func(a, b int) bool { return results[a].score > results[b].score })
	if len(results) > k {
		results = results[:k]
	}

	maxScore := results[0].score
	out := make([]models.Passage, len(results))
	for i, r := range results {
		p := idx.passages[r.i]
		p.LexicalScore = r.score / maxScore
		out[i] = p
	}
	return out
}

// Tokenize lowercases text and splits it on non-alphanumeric runes.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
