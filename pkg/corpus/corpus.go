// Package corpus loads the initial paragraphs corpus from its JSON file.
package corpus

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kolzchut/ragbot/pkg/engine"
)

// corpusEntry mirrors one corpus record. The license field present in the
// distributed corpus file is read and discarded.
type corpusEntry struct {
	DocID   int    `json:"doc_id"`
	Title   string `json:"title"`
	Link    string `json:"link"`
	Content string `json:"content"`
	License string `json:"license,omitempty"`
}

// Load reads the corpus JSON file and converts it into engine documents,
// dropping the license field.
func Load(path string) ([]engine.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus file: %w", err)
	}

	var entries []corpusEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parsing corpus file %q: %w", path, err)
	}

	docs := make([]engine.Document, len(entries))
	for i, entry := range entries {
		docs[i] = engine.Document{
			DocID:   entry.DocID,
			Title:   entry.Title,
			Link:    entry.Link,
			Content: entry.Content,
		}
	}

	return docs, nil
}
