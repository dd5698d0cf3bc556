package dbstore

// schemaVersion is the current schema version. initSchema is
// idempotent (CREATE TABLE IF NOT EXISTS) so there is no migration
// runner yet; bumping this is a placeholder for when a second schema
// version actually ships.
const schemaVersion = 1

// schema creates every table, index, and FTS5 virtual table the store
// depends on. Chunks use an INTEGER rowid so the FTS5 external-content
// table (chunks_fts) can reference rows by rowid, while documents and
// images keep opaque TEXT ids since nothing needs FTS5 over them.
const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	filename      TEXT NOT NULL,
	format        TEXT NOT NULL,
	sha256        TEXT NOT NULL UNIQUE,
	size_bytes    INTEGER NOT NULL,
	source_path   TEXT NOT NULL,
	access_tags   TEXT NOT NULL DEFAULT '[]',
	status        TEXT NOT NULL DEFAULT 'pending',
	phase         TEXT NOT NULL DEFAULT '',
	progress      REAL NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	chunk_count   INTEGER NOT NULL DEFAULT 0,
	image_count   INTEGER NOT NULL DEFAULT 0,
	vision_model    TEXT NOT NULL DEFAULT '',
	caption_status  TEXT NOT NULL DEFAULT 'not_requested',
	caption_progress INTEGER NOT NULL DEFAULT 0,
	caption_total    INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_sha256 ON documents(sha256);

CREATE TABLE IF NOT EXISTS chunks (
	rowid         INTEGER PRIMARY KEY AUTOINCREMENT,
	id            TEXT NOT NULL UNIQUE,
	document_id   TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	chunk_index   INTEGER NOT NULL,
	content       TEXT NOT NULL,
	section_title TEXT NOT NULL DEFAULT '',
	page_number   INTEGER NOT NULL DEFAULT 0,
	embedding     BLOB,
	embedded_at   TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);
CREATE INDEX IF NOT EXISTS idx_chunks_pending_embedding ON chunks(document_id) WHERE embedding IS NULL;

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	content,
	content='chunks',
	content_rowid='rowid',
	tokenize='unicode61'
);

CREATE TRIGGER IF NOT EXISTS chunks_fts_insert AFTER INSERT ON chunks BEGIN
	INSERT INTO chunks_fts(rowid, content) VALUES (new.rowid, new.content);
END;

CREATE TRIGGER IF NOT EXISTS chunks_fts_delete AFTER DELETE ON chunks BEGIN
	INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
END;

CREATE TRIGGER IF NOT EXISTS chunks_fts_update AFTER UPDATE ON chunks BEGIN
	INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
	INSERT INTO chunks_fts(rowid, content) VALUES (new.rowid, new.content);
END;

CREATE TRIGGER IF NOT EXISTS documents_chunk_count_insert AFTER INSERT ON chunks BEGIN
	UPDATE documents SET chunk_count = chunk_count + 1 WHERE id = new.document_id;
END;

CREATE TRIGGER IF NOT EXISTS documents_chunk_count_delete AFTER DELETE ON chunks BEGIN
	UPDATE documents SET chunk_count = chunk_count - 1 WHERE id = old.document_id;
END;

CREATE TABLE IF NOT EXISTS images (
	id                TEXT PRIMARY KEY,
	document_id       TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	page_number       INTEGER NOT NULL,
	image_index       INTEGER NOT NULL,
	file_path         TEXT NOT NULL,
	width             INTEGER NOT NULL DEFAULT 0,
	height            INTEGER NOT NULL DEFAULT 0,
	is_background     INTEGER NOT NULL DEFAULT 0,
	image_type        TEXT NOT NULL DEFAULT 'individual',
	source_pages      TEXT NOT NULL DEFAULT '',
	has_region_render INTEGER NOT NULL DEFAULT 0,
	source_image_id   TEXT NOT NULL DEFAULT '',
	caption           TEXT NOT NULL DEFAULT '',
	embedding         BLOB,
	status            TEXT NOT NULL DEFAULT 'pending',
	error_message     TEXT NOT NULL DEFAULT '',
	captioned_at      TEXT NOT NULL DEFAULT '',
	created_at        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_images_document_id ON images(document_id);
CREATE INDEX IF NOT EXISTS idx_images_status ON images(status);

CREATE TRIGGER IF NOT EXISTS documents_image_count_insert AFTER INSERT ON images BEGIN
	UPDATE documents SET image_count = image_count + 1 WHERE id = new.document_id;
END;

CREATE TRIGGER IF NOT EXISTS documents_image_count_delete AFTER DELETE ON images BEGIN
	UPDATE documents SET image_count = image_count - 1 WHERE id = old.document_id;
END;

CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation_id ON messages(conversation_id);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS external_image_descriptions (
	image_path   TEXT PRIMARY KEY,
	description  TEXT NOT NULL,
	vision_model TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);

INSERT OR IGNORE INTO schema_version (version) VALUES (1);
`
