// Package ingestion defines the upload, metadata and Kafka event types of the
// document ingestion pipeline.
package ingestion

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/store"
)

const (
	EventDocumentIngested = "document.ingested"
	EventDocumentDeleted  = "document.deleted"
)

// TimestampLayout formats upload_timestamp.
const TimestampLayout = time.RFC3339

// Upload is one received file.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// DocumentMetadata is returned to the caller after a document is stored.
type DocumentMetadata struct {
	DocumentID      string         `json:"document_id"`
	FileName        string         `json:"file_name"`
	FileType        string         `json:"file_type"`
	UploadTimestamp string         `json:"upload_timestamp"`
	TotalChunks     int            `json:"total_chunks"`
	AdditionalInfo  map[string]any `json:"additional_info"`
}

// DocumentEvent is the Kafka payload published after a document is stored or
// deleted.
type DocumentEvent struct {
	Type        string    `json:"type"`
	DocumentID  string    `json:"document_id"`
	FileName    string    `json:"file_name,omitempty"`
	FileType    string    `json:"file_type,omitempty"`
	TotalChunks int       `json:"total_chunks"`
	Timestamp   time.Time `json:"timestamp"`
}

// MetadataFromDocument maps a stored row to the API shape.
func MetadataFromDocument(d store.Document) DocumentMetadata {
	info := d.AdditionalInfo
	if info == nil {
		info = map[string]any{}
	}
	return DocumentMetadata{
		DocumentID:      d.ID,
		FileName:        d.FileName,
		FileType:        d.FileType,
		UploadTimestamp: d.UploadedAt.UTC().Format(TimestampLayout),
		TotalChunks:     d.TotalChunks,
		AdditionalInfo:  info,
	}
}
