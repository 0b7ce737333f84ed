package models

// Segment is an ordered piece of text produced by an extractor.
// Source is a human label such as "page 3" or a sheet name.
type Segment struct {
	Text   string
	Source string
}

// Chunk represents a bounded span of extracted text with its owning file
type Chunk struct {
	Text       string `json:"text"`
	FileID     string `json:"file_id"`
	OrderIndex int    `json:"order_index"`
	Source     string `json:"source,omitempty"`
}

type SearchResult struct {
	Chunk Chunk
	Score float32
}

// Source is the prompt-facing reference to a retrieved chunk.
type Source struct {
	FileID   string  `json:"file_id"`
	Filename string  `json:"filename"`
	Location string  `json:"location,omitempty"`
	Score    float32 `json:"score"`
}
