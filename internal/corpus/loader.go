// Package corpus loads the Aesop's Fables dataset from its raw JSON
// form and prepares it for indexing.
package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/fabled/internal/vectorstore"
)

// Sentinel errors returned by Load.
var (
	ErrEmptyCorpus = errors.New("corpus contains no fables")
	ErrInvalidData = errors.New("invalid corpus data")
)

// maxCorpusBytes bounds the dataset file size. The full Aesop corpus is
// well under 2MB.
const maxCorpusBytes = 32 << 20

// rawCorpus mirrors the dataset file layout.
type rawCorpus struct {
	Stories []rawStory `json:"stories"`
}

type rawStory struct {
	Number     flexInt  `json:"number"`
	Title      string   `json:"title"`
	Story      []string `json:"story"`
	Moral      string   `json:"moral"`
	Characters []string `json:"characters"`
}

// flexInt decodes a JSON number or a numeric string. The dataset is
// inconsistent about which it uses for fable numbers.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("parse fable number %q: %w", s, err)
	}
	*n = flexInt(v)
	return nil
}

// Stats summarizes a loaded corpus.
type Stats struct {
	TotalFables  int
	TotalWords   int
	AverageWords float64
}

// Load reads the raw dataset at path and returns fables ready for
// indexing, ordered as they appear in the file. Stories with no number
// or no content are rejected rather than silently skipped.
func Load(path string) ([]vectorstore.Fable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	if len(data) > maxCorpusBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidData, maxCorpusBytes)
	}
	return Parse(data)
}

// Parse decodes the raw dataset bytes. See Load.
func Parse(data []byte) ([]vectorstore.Fable, error) {
	var raw rawCorpus
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	if len(raw.Stories) == 0 {
		return nil, ErrEmptyCorpus
	}

	seen := make(map[int]bool, len(raw.Stories))
	fables := make([]vectorstore.Fable, 0, len(raw.Stories))
	for i, s := range raw.Stories {
		id := int(s.Number)
		if id <= 0 {
			return nil, fmt.Errorf("%w: story %d has no valid number", ErrInvalidData, i)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate fable number %d", ErrInvalidData, id)
		}
		seen[id] = true

		content := strings.Join(s.Story, " ")
		if strings.TrimSpace(content) == "" {
			return nil, fmt.Errorf("%w: fable %d has no content", ErrInvalidData, id)
		}

		fables = append(fables, vectorstore.Fable{
			ID:        id,
			Title:     s.Title,
			Content:   content,
			Moral:     s.Moral,
			Language:  "en",
			WordCount: len(strings.Fields(content)),
		})
	}

	return fables, nil
}

// Statistics computes summary statistics over a loaded corpus.
func Statistics(fables []vectorstore.Fable) Stats {
	var total int
	for _, f := range fables {
		total += f.WordCount
	}
	st := Stats{TotalFables: len(fables), TotalWords: total}
	if len(fables) > 0 {
		st.AverageWords = float64(total) / float64(len(fables))
	}
	return st
}
