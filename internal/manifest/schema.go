package manifest

// Statements are portable between SQLite and Postgres.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS manifests (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		engine_name TEXT NOT NULL,
		engine_version TEXT NOT NULL,
		engine_checksum TEXT NOT NULL,
		version INTEGER NOT NULL,
		document_checksum TEXT NOT NULL,
		page_count INTEGER NOT NULL,
		tags TEXT NOT NULL,
		text_path TEXT NOT NULL,
		text_hash TEXT NOT NULL,
		text_size BIGINT NOT NULL,
		metadata_path TEXT NOT NULL,
		metadata_hash TEXT NOT NULL,
		metadata_size BIGINT NOT NULL,
		metadata_scope TEXT NOT NULL,
		page_errors TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		UNIQUE (document_id, engine_name, engine_version, engine_checksum, version)
	)`,
	`CREATE TABLE IF NOT EXISTS manifest_images (
		manifest_id TEXT NOT NULL REFERENCES manifests (id) ON DELETE CASCADE,
		page INTEGER NOT NULL,
		encoding TEXT NOT NULL,
		hash TEXT NOT NULL,
		size BIGINT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		PRIMARY KEY (manifest_id, page, encoding)
	)`,
	`CREATE TABLE IF NOT EXISTS audit_results (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		document_id TEXT NOT NULL,
		engine TEXT NOT NULL,
		status TEXT NOT NULL,
		artifact TEXT NOT NULL,
		page INTEGER NOT NULL,
		tier TEXT NOT NULL,
		verdict TEXT NOT NULL,
		similarity DOUBLE PRECISION NOT NULL,
		locator TEXT NOT NULL,
		detail TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_manifests_key ON manifests (document_id, engine_name, engine_version, engine_checksum)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_results_run ON audit_results (run_id)`,
}
