package domain

import "errors"

var (
	// ErrNotFound indicates resource not found
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidRequest indicates invalid request
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")

	// ErrIngest indicates an uploaded file could not be read or parsed
	ErrIngest = errors.New("ingest failed")
	// ErrEmbedding indicates the embedding service or index failed
	ErrEmbedding = errors.New("embedding failed")
	// ErrGeneration indicates a language model call failed
	ErrGeneration = errors.New("generation failed")
	// ErrConfig indicates missing or invalid configuration
	ErrConfig = errors.New("invalid configuration")
)
