// Package api holds the JSON wire types shared by the server and its clients.
package api

import "docchat/internal/models"

const SessionHeader = "X-Session-Id"

type UploadResponse struct {
	Filename          string                `json:"filename"`
	FileID            string                `json:"file_id"`
	Message           string                `json:"message"`
	IndexingStatus    models.IndexingStatus `json:"indexing_status"`
	UseBrowserStorage bool                  `json:"use_browser_storage"`
	// FileContent is base64 and only set when UseBrowserStorage is true.
	FileContent string `json:"file_content,omitempty"`
}

type FilesResponse struct {
	Files []models.File `json:"files"`
}

type FileStatusResponse struct {
	FileID  string                `json:"file_id"`
	Status  models.IndexingStatus `json:"status"`
	Message string                `json:"message"`
}

type ReindexResponse struct {
	FileID            string                `json:"file_id"`
	Status            models.IndexingStatus `json:"status"`
	Message           string                `json:"message"`
	UseBrowserStorage bool                  `json:"use_browser_storage"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type PreIndexedRequest struct {
	FileID     string      `json:"file_id"`
	Filename   string      `json:"filename"`
	Chunks     []string    `json:"chunks"`
	Embeddings [][]float32 `json:"embeddings"`
	// Sources optionally labels each chunk, e.g. "page 2".
	Sources []string `json:"sources,omitempty"`
	// Error reports that the client could not index the file. Chunks and
	// embeddings are ignored when it is set.
	Error string `json:"error,omitempty"`
}

type PreIndexedResponse struct {
	FileID     string                `json:"file_id"`
	Status     models.IndexingStatus `json:"status"`
	Message    string                `json:"message"`
	ChunkCount int                   `json:"chunk_count"`
}

type ChatFileRequest struct {
	UserMessage string   `json:"user_message"`
	FileIDs     []string `json:"file_ids"`
	SessionID   string   `json:"session_id,omitempty"`
	Model       string   `json:"model,omitempty"`
}

type ChatRequest struct {
	DeveloperMessage string `json:"developer_message"`
	UserMessage      string `json:"user_message"`
	Model            string `json:"model,omitempty"`
}

type SessionsResponse struct {
	Sessions []models.ChatSession `json:"sessions"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Readonly bool   `json:"readonly"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
