package domain

// File is an uploaded file held in memory
type File struct {
	Name string
	Data []byte
}

// Segment is the text of one page of an uploaded document
type Segment struct {
	Text   string
	Source string
	Page   int
}

// Chunk is a bounded piece of a segment, the unit of retrieval.
// ChunkIndex counts chunks within the same source file.
type Chunk struct {
	Text       string `json:"text"`
	Source     string `json:"source"`
	Page       int    `json:"page"`
	ChunkIndex int    `json:"chunk_index"`
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// ToSource converts a search result into a citation
func (r SearchResult) ToSource() Source {
	return Source{
		Filename:   r.Chunk.Source,
		Page:       r.Chunk.Page,
		ChunkIndex: r.Chunk.ChunkIndex,
		Content:    r.Chunk.Text,
		Score:      r.Score,
	}
}

// IngestResult summarizes one upload batch
type IngestResult struct {
	Documents []string `json:"documents"`
	Pages     int      `json:"pages"`
	Chunks    int      `json:"chunks"`
}

// IndexStats describes the current index
type IndexStats struct {
	Ready     bool     `json:"ready"`
	Chunks    int      `json:"chunks"`
	Dimension int      `json:"dimension"`
	Sources   []string `json:"sources"`
}
