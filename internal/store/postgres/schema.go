package postgres

import "fmt"

// schemaLockID serialises concurrent EnsureSchema calls across processes.
const schemaLockID = 0x646f6371

func schemaStatements(dimensions int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS documents (
			doc_id          TEXT PRIMARY KEY,
			file_name       TEXT NOT NULL,
			file_type       TEXT NOT NULL,
			uploaded_at     TIMESTAMPTZ NOT NULL,
			total_chunks    INTEGER NOT NULL,
			additional_info JSONB NOT NULL DEFAULT '{}'::jsonb
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
			doc_id          TEXT NOT NULL,
			chunk_id        INTEGER NOT NULL,
			page_no         TEXT NOT NULL,
			chunk_data_type TEXT NOT NULL,
			chunk_data      TEXT NOT NULL,
			file_type       TEXT NOT NULL,
			embedding       vector(%d),
			tsv             tsvector GENERATED ALWAYS AS (to_tsvector('english', chunk_data)) STORED,
			PRIMARY KEY (doc_id, chunk_id)
		)`, dimensions),
		`CREATE INDEX IF NOT EXISTS document_chunks_embedding_idx
			ON document_chunks USING hnsw (embedding vector_cosine_ops)`,
		`CREATE INDEX IF NOT EXISTS document_chunks_tsv_idx
			ON document_chunks USING gin (tsv)`,
		`CREATE INDEX IF NOT EXISTS documents_uploaded_at_idx
			ON documents (uploaded_at DESC)`,
	}
}

const (
	chunkColumns = `doc_id, chunk_id, page_no, chunk_data_type, chunk_data, file_type`

	vectorSearchSQL = `SELECT ` + chunkColumns + `, embedding <=> $1 AS distance
		FROM document_chunks
		WHERE embedding IS NOT NULL AND ($2 = '' OR doc_id = $2)
		ORDER BY embedding <=> $1, doc_id, chunk_id
		LIMIT $3`

	keywordSearchSQL = `SELECT ` + chunkColumns + `, ts_rank_cd(tsv, q) AS rank
		FROM document_chunks, to_tsquery('english', $1) AS q
		WHERE tsv @@ q AND ($2 = '' OR doc_id = $2)
		ORDER BY rank DESC, doc_id, chunk_id
		LIMIT $3`

	upsertDocumentSQL = `INSERT INTO documents (doc_id, file_name, file_type, uploaded_at, total_chunks, additional_info)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (doc_id) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			file_type = EXCLUDED.file_type,
			uploaded_at = EXCLUDED.uploaded_at,
			total_chunks = EXCLUDED.total_chunks,
			additional_info = EXCLUDED.additional_info`

	documentColumns = `doc_id, file_name, file_type, uploaded_at, total_chunks, additional_info`
)
