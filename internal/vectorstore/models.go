package vectorstore

import (
	"fmt"
	"sort"
)

// Fable is a single retrievable story record. Fables are created once
// during corpus load and never mutated.
type Fable struct {
	// ID is the fable identity, a positive integer.
	ID int `json:"id"`

	// Title is the fable title.
	Title string `json:"title"`

	// Content is the full story text.
	Content string `json:"content"`

	// Moral is the lesson of the fable.
	Moral string `json:"moral"`

	// Language is the ISO language code of the text.
	Language string `json:"language"`

	// WordCount is the number of words in Content.
	WordCount int `json:"word_count"`
}

// IndexText returns the text that is embedded for this fable.
func (f Fable) IndexText() string {
	return fmt.Sprintf("%s. %s Moral: %s", f.Title, f.Content, f.Moral)
}

// SearchResult pairs a fable with its similarity score. With cosine
// distance scores fall in [0, 1]; higher is more similar.
type SearchResult struct {
	Fable Fable   `json:"fable"`
	Score float32 `json:"score"`
}

// CollectionInfo contains metadata about the fable collection.
type CollectionInfo struct {
	Name       string `json:"name"`
	PointCount uint64 `json:"point_count"`
	VectorSize uint64 `json:"vector_size"`
}

// SortResults orders results by descending score, breaking ties by
// ascending fable ID so equal-score orderings are deterministic.
func SortResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Fable.ID < results[j].Fable.ID
	})
}
