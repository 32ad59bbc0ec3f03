package protocol

// SchemaDDL defines the SQLite schema for the pitboss state database.
// Tables: events, accounts, transactions, alerts, daily_archive.
// Execute against a SQLite database with: db.Exec(SchemaDDL)
const SchemaDDL = `
-- Runtime event log: all dispatcher/ledger lifecycle events
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY,
    type TEXT NOT NULL,
    source TEXT NOT NULL,
    task_id TEXT,
    worker_id TEXT,
    account_id TEXT,
    payload TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Per-account wallet balances; one row per account, created lazily
CREATE TABLE IF NOT EXISTS accounts (
    account_id TEXT PRIMARY KEY,
    coins INTEGER NOT NULL DEFAULT 0 CHECK (coins >= 0),
    redeemable INTEGER NOT NULL DEFAULT 0 CHECK (redeemable >= 0),
    loyalty INTEGER NOT NULL DEFAULT 0 CHECK (loyalty >= 0),
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Append-only transaction history with before/after balance snapshots
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    account_id TEXT NOT NULL,
    amount INTEGER NOT NULL,
    currency TEXT NOT NULL,
    description TEXT,
    task_id TEXT,
    game_id TEXT,
    session_id TEXT,
    before_coins INTEGER NOT NULL,
    before_redeemable INTEGER NOT NULL,
    before_loyalty INTEGER NOT NULL,
    after_coins INTEGER NOT NULL,
    after_redeemable INTEGER NOT NULL,
    after_loyalty INTEGER NOT NULL,
    status TEXT NOT NULL DEFAULT 'completed',
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_transactions_account
    ON transactions(account_id, created_at);

-- Alert stream consumed by dashboards and notification pipes
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    title TEXT NOT NULL,
    message TEXT,
    severity TEXT NOT NULL,
    source TEXT NOT NULL,
    payload TEXT,
    status TEXT NOT NULL DEFAULT 'active',
    acknowledged INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status);

-- Prior-day counter snapshots, archived at the midnight rollover
CREATE TABLE IF NOT EXISTS daily_archive (
    date TEXT PRIMARY KEY,
    earned INTEGER NOT NULL,
    purchased INTEGER NOT NULL,
    spins INTEGER NOT NULL,
    revenue INTEGER NOT NULL,
    users_online INTEGER NOT NULL,
    games_active INTEGER NOT NULL,
    archived_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`
