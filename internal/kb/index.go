package kb

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gridsight/gridsight-ai/internal/metrics"
)

// snippetLimit caps citation snippets so tickets stay readable.
const snippetLimit = 600

// Citation is one search hit, trimmed for embedding in a fault ticket.
type Citation struct {
	SourceID string  `json:"source_id"`
	Title    string  `json:"title"`
	Section  string  `json:"section,omitempty"`
	URL      string  `json:"url,omitempty"`
	Snippet  string  `json:"snippet"`
	Score    float64 `json:"score"`
}

// Index is an in-memory keyword index over the loaded documents. It degrades
// gracefully: no embedding backend is required, term overlap decides
// ranking. Safe for concurrent search and reload.
type Index struct {
	mu   sync.RWMutex
	docs []Document
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{}
}

// Replace atomically swaps the indexed document set.
func (x *Index) Replace(docs []Document) {
	x.mu.Lock()
	x.docs = docs
	x.mu.Unlock()
	metrics.KBDocumentsLoaded.Set(float64(len(docs)))
}

// Len returns the number of indexed documents.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

// Search returns the top-k documents by query term overlap, scored over
// title, section and body. Title hits weigh double. Zero-score documents are
// excluded.
func (x *Index) Search(query string, k int) []Citation {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if k <= 0 {
		k = 3
	}
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil
	}

	type scored struct {
		doc   Document
		score float64
	}
	var matches []scored
	for _, doc := range x.docs {
		titleLower := strings.ToLower(doc.Title + " " + doc.Section)
		bodyLower := strings.ToLower(doc.Content)
		score := 0.0
		for _, term := range terms {
			if strings.Contains(titleLower, term) {
				score += 2.0
			}
			if strings.Contains(bodyLower, term) {
				score += 1.0
			}
		}
		if score > 0 {
			matches = append(matches, scored{doc: doc, score: score})
		}
	}

	// Insertion sort by score descending; the corpus is small.
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].score > matches[j-1].score; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
	if len(matches) > k {
		matches = matches[:k]
	}

	out := make([]Citation, len(matches))
	for i, m := range matches {
		out[i] = Citation{
			SourceID: m.doc.SourceID,
			Title:    m.doc.Title,
			Section:  m.doc.Section,
			URL:      m.doc.URL,
			Snippet:  snippet(m.doc.Content),
			Score:    m.score,
		}
	}
	return out
}

// snippet truncates to snippetLimit bytes without splitting a rune.
func snippet(content string) string {
	if len(content) <= snippetLimit {
		return content
	}
	cut := snippetLimit
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}
