package models

import "time"

// IndexingStatus is the lifecycle state of a file's index entries.
type IndexingStatus string

const (
	StatusPending   IndexingStatus = "pending"
	StatusIndexing  IndexingStatus = "indexing"
	StatusCompleted IndexingStatus = "completed"
	StatusFailed    IndexingStatus = "failed"
	StatusUnknown   IndexingStatus = "unknown"
)

// Active reports whether a poller should keep watching a file in this state.
func (s IndexingStatus) Active() bool {
	return s == StatusPending || s == StatusIndexing
}

// StorageLocation says where the raw bytes of a file live.
type StorageLocation string

const (
	LocationServer StorageLocation = "server"
	LocationClient StorageLocation = "client"
	LocationBoth   StorageLocation = "both"
)

// File is one uploaded document as listed in the catalog.
type File struct {
	FileID           string          `json:"file_id"`
	OriginalFilename string          `json:"original_filename"`
	UploadedAt       time.Time       `json:"uploaded_at"`
	IndexingStatus   IndexingStatus  `json:"indexing_status"`
	IndexingMessage  string          `json:"indexing_message"`
	StorageLocation  StorageLocation `json:"storage_location,omitempty"`
	ChunkCount       int             `json:"chunk_count"`
	SizeBytes        int64           `json:"size_bytes,omitempty"`
}
