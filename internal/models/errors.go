package models

import "errors"

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrExtraction        = errors.New("could not process file")
	ErrEmbeddingService  = errors.New("embedding service error")
	ErrCompletionService = errors.New("completion service error")
	ErrNotFound          = errors.New("files not found or not indexed")
	ErrStorage           = errors.New("file will not survive a restart")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid indexing state transition")
)
