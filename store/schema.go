package store

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS racks (
	id                       INTEGER PRIMARY KEY AUTOINCREMENT,
	name                     TEXT NOT NULL UNIQUE,
	zone                     TEXT NOT NULL DEFAULT '',
	status                   TEXT NOT NULL DEFAULT 'active',
	size_u                   INTEGER NOT NULL DEFAULT 42 CHECK (size_u > 0),
	total_power_capacity_w   REAL,
	total_cooling_capacity_w REAL,
	pos_x                    REAL NOT NULL DEFAULT 0,
	pos_y                    REAL NOT NULL DEFAULT 0,
	pos_z                    REAL NOT NULL DEFAULT 0,
	rotation_y               REAL NOT NULL DEFAULT 0,
	created_at               TEXT NOT NULL,
	updated_at               TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS equipment_models (
	model          TEXT PRIMARY KEY,
	vendor         TEXT NOT NULL DEFAULT '',
	default_size_u INTEGER NOT NULL CHECK (default_size_u > 0)
);

CREATE TABLE IF NOT EXISTS equipment (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	rack_id    INTEGER REFERENCES racks(id) ON DELETE SET NULL,
	name       TEXT NOT NULL,
	type       TEXT NOT NULL DEFAULT '',
	model      TEXT NOT NULL DEFAULT '',
	vendor     TEXT NOT NULL DEFAULT '',
	size_u     INTEGER CHECK (size_u IS NULL OR size_u > 0),
	status     TEXT NOT NULL DEFAULT 'active',
	pos_y      REAL NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_equipment_rack ON equipment(rack_id);

CREATE TABLE IF NOT EXISTS equipment_metrics (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	equipment_id INTEGER NOT NULL REFERENCES equipment(id) ON DELETE CASCADE,
	metric_type  TEXT NOT NULL,
	value        REAL NOT NULL,
	recorded_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_metrics_equipment ON equipment_metrics(equipment_id, metric_type);

CREATE TABLE IF NOT EXISTS audit_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_type TEXT NOT NULL,
	entity_id   INTEGER NOT NULL,
	action      TEXT NOT NULL,
	old_value   TEXT NOT NULL DEFAULT '',
	new_value   TEXT NOT NULL DEFAULT '',
	actor       TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS migrations (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	equipment_id         INTEGER NOT NULL,
	from_rack_id         INTEGER,
	to_rack_id           INTEGER NOT NULL,
	requested_position_u INTEGER,
	outcome              TEXT NOT NULL,
	reasons              TEXT NOT NULL DEFAULT '',
	actor                TEXT NOT NULL DEFAULT '',
	created_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	topic      TEXT NOT NULL,
	payload    BLOB NOT NULL,
	msg_type   TEXT NOT NULL,
	msg_key    TEXT NOT NULL DEFAULT '',
	attempts   INTEGER NOT NULL DEFAULT 0,
	last_error TEXT NOT NULL DEFAULT '',
	sent_at    TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at, id);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS racks (
	id                       BIGSERIAL PRIMARY KEY,
	name                     TEXT NOT NULL UNIQUE,
	zone                     TEXT NOT NULL DEFAULT '',
	status                   TEXT NOT NULL DEFAULT 'active',
	size_u                   INTEGER NOT NULL DEFAULT 42 CHECK (size_u > 0),
	total_power_capacity_w   DOUBLE PRECISION,
	total_cooling_capacity_w DOUBLE PRECISION,
	pos_x                    DOUBLE PRECISION NOT NULL DEFAULT 0,
	pos_y                    DOUBLE PRECISION NOT NULL DEFAULT 0,
	pos_z                    DOUBLE PRECISION NOT NULL DEFAULT 0,
	rotation_y               DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at               TEXT NOT NULL,
	updated_at               TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS equipment_models (
	model          TEXT PRIMARY KEY,
	vendor         TEXT NOT NULL DEFAULT '',
	default_size_u INTEGER NOT NULL CHECK (default_size_u > 0)
);

CREATE TABLE IF NOT EXISTS equipment (
	id         BIGSERIAL PRIMARY KEY,
	rack_id    BIGINT REFERENCES racks(id) ON DELETE SET NULL,
	name       TEXT NOT NULL,
	type       TEXT NOT NULL DEFAULT '',
	model      TEXT NOT NULL DEFAULT '',
	vendor     TEXT NOT NULL DEFAULT '',
	size_u     INTEGER CHECK (size_u IS NULL OR size_u > 0),
	status     TEXT NOT NULL DEFAULT 'active',
	pos_y      DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_equipment_rack ON equipment(rack_id);

CREATE TABLE IF NOT EXISTS equipment_metrics (
	id           BIGSERIAL PRIMARY KEY,
	equipment_id BIGINT NOT NULL REFERENCES equipment(id) ON DELETE CASCADE,
	metric_type  TEXT NOT NULL,
	value        DOUBLE PRECISION NOT NULL,
	recorded_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_metrics_equipment ON equipment_metrics(equipment_id, metric_type);

CREATE TABLE IF NOT EXISTS audit_log (
	id          BIGSERIAL PRIMARY KEY,
	entity_type TEXT NOT NULL,
	entity_id   BIGINT NOT NULL,
	action      TEXT NOT NULL,
	old_value   TEXT NOT NULL DEFAULT '',
	new_value   TEXT NOT NULL DEFAULT '',
	actor       TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS migrations (
	id                   BIGSERIAL PRIMARY KEY,
	equipment_id         BIGINT NOT NULL,
	from_rack_id         BIGINT,
	to_rack_id           BIGINT NOT NULL,
	requested_position_u INTEGER,
	outcome              TEXT NOT NULL,
	reasons              TEXT NOT NULL DEFAULT '',
	actor                TEXT NOT NULL DEFAULT '',
	created_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
	id         BIGSERIAL PRIMARY KEY,
	topic      TEXT NOT NULL,
	payload    BYTEA NOT NULL,
	msg_type   TEXT NOT NULL,
	msg_key    TEXT NOT NULL DEFAULT '',
	attempts   INTEGER NOT NULL DEFAULT 0,
	last_error TEXT NOT NULL DEFAULT '',
	sent_at    TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at, id);
`
