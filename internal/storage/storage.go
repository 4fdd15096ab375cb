// Package storage defines the retrieval history model. History is a
// convenience record of past runs; writes are best-effort and never fail a
// fetch.
package storage

import "time"

// Retrieval statuses.
const (
	StatusDownloaded = "downloaded"
	StatusFailed     = "failed"
)

// RetrievalRecord is one finished (or failed) gateway retrieval.
type RetrievalRecord struct {
	RunID       string
	SwarmHash   string
	FilePath    string
	Bytes       int64
	Status      string
	RetrievedAt time.Time
}

// RetrievalRepository persists and lists retrieval records.
type RetrievalRepository interface {
	TrackRetrieval(record RetrievalRecord) error
	GetRetrievals() ([]RetrievalRecord, error)
}
