package search

import "fmt"

// ChunkDocument is the indexed form of one chunk's recognized text.
type ChunkDocument struct {
	ID       string
	ASIN     string
	ChunkID  string
	Provider string
	Text     string
}

// DocumentID builds the index document id for one (asin, chunk, provider)
// tuple.
func DocumentID(asin, chunkID, provider string) string {
	return fmt.Sprintf("%s:%s:%s", asin, chunkID, provider)
}

// ToMap converts the document to the lowercase field names the index mapping
// is built around.
func (d *ChunkDocument) ToMap() map[string]any {
	return map[string]any{
		"asin":     d.ASIN,
		"chunk_id": d.ChunkID,
		"provider": d.Provider,
		"text":     d.Text,
	}
}
