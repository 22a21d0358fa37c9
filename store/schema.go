package store

// Both backends speak the SQLite dialect (D1 is SQLite under the hood),
// so one schema serves them.
const schema = `
CREATE TABLE IF NOT EXISTS bin_configurations (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    bin_id               TEXT NOT NULL UNIQUE,
    row                  INTEGER NOT NULL,
    position             INTEGER NOT NULL,
    article_type         TEXT NOT NULL DEFAULT '',
    article_name         TEXT NOT NULL DEFAULT '',
    article_weight_grams REAL NOT NULL,
    min_threshold        INTEGER NOT NULL DEFAULT 10,
    critical_threshold   INTEGER NOT NULL DEFAULT 5,
    max_capacity         INTEGER NOT NULL DEFAULT 100,
    created_at           TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at           TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_bins_grid ON bin_configurations(row, position);

CREATE TABLE IF NOT EXISTS current_inventory (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    bin_id              TEXT NOT NULL UNIQUE REFERENCES bin_configurations(bin_id),
    weight_grams        REAL NOT NULL DEFAULT 0,
    calculated_quantity INTEGER NOT NULL DEFAULT 0,
    last_updated        TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS inventory_data (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    bin_id              TEXT NOT NULL REFERENCES bin_configurations(bin_id),
    weight_grams        REAL NOT NULL,
    calculated_quantity INTEGER NOT NULL,
    timestamp           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_inventory_bin_ts ON inventory_data(bin_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_inventory_ts ON inventory_data(timestamp);

CREATE TABLE IF NOT EXISTS alert_configurations (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    bin_id          TEXT NOT NULL REFERENCES bin_configurations(bin_id),
    alert_type      TEXT NOT NULL,
    threshold_value INTEGER NOT NULL DEFAULT 0,
    is_enabled      INTEGER NOT NULL DEFAULT 1,
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now')),
    UNIQUE(bin_id, alert_type)
);

CREATE TABLE IF NOT EXISTS alert_logs (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    bin_id            TEXT NOT NULL REFERENCES bin_configurations(bin_id),
    alert_type        TEXT NOT NULL,
    message           TEXT NOT NULL DEFAULT '',
    quantity_at_alert INTEGER NOT NULL DEFAULT 0,
    threshold_value   INTEGER NOT NULL DEFAULT 0,
    is_acknowledged   INTEGER NOT NULL DEFAULT 0,
    acknowledged_at   TEXT,
    acknowledged_by   TEXT,
    created_at        TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_alerts_cooldown ON alert_logs(bin_id, alert_type, created_at);
CREATE INDEX IF NOT EXISTS idx_alerts_active ON alert_logs(is_acknowledged);

CREATE TABLE IF NOT EXISTS system_settings (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    setting_key   TEXT NOT NULL UNIQUE,
    setting_value TEXT NOT NULL,
    description   TEXT NOT NULL DEFAULT '',
    updated_at    TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS admin_users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS alert_outbox (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    topic      TEXT NOT NULL,
    payload    TEXT NOT NULL,
    retries    INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    sent_at    TEXT
);
CREATE INDEX IF NOT EXISTS idx_alert_outbox_pending ON alert_outbox(sent_at) WHERE sent_at IS NULL;
`
