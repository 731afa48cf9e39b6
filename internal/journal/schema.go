// Package journal persists every trading decision: orders, the materialised
// holdings view with its trigger latches, daily performance, alerts, semi-mode
// buy suggestions, simulated balances and the per-user configuration. One
// SQLite file per deployment; repositories share it.
package journal

// Schema is the full DDL, applied idempotently at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT NOT NULL,
    is_paper    INTEGER NOT NULL DEFAULT 1,
    account_no  TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS user_settings (
    user_id           INTEGER PRIMARY KEY REFERENCES users(id),
    mode              TEXT NOT NULL DEFAULT 'manual',
    enabled           INTEGER NOT NULL DEFAULT 0,
    score_version     TEXT NOT NULL DEFAULT 'v2',
    buy_conditions    TEXT NOT NULL DEFAULT '',
    sell_conditions   TEXT NOT NULL DEFAULT '',
    min_buy_score     INTEGER NOT NULL DEFAULT 0,
    sell_score        INTEGER NOT NULL DEFAULT 0,
    stop_loss_rate    REAL NOT NULL DEFAULT 0,
    take_profit_rate  REAL NOT NULL DEFAULT 0,
    max_holdings      INTEGER NOT NULL DEFAULT 5,
    max_daily_trades  INTEGER NOT NULL DEFAULT 0,
    max_hold_days     INTEGER NOT NULL DEFAULT 0,
    per_ticker_budget REAL NOT NULL DEFAULT 0,
    min_volume_ratio  REAL NOT NULL DEFAULT 0,
    gap_limit_pct     REAL NOT NULL DEFAULT 15,
    expire_hours      INTEGER NOT NULL DEFAULT 24,
    updated_at        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS api_key_settings (
    user_id     INTEGER PRIMARY KEY REFERENCES users(id),
    app_key     TEXT NOT NULL DEFAULT '',
    app_secret  TEXT NOT NULL DEFAULT '',
    updated_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id         INTEGER NOT NULL,
    ticker          TEXT NOT NULL,
    name            TEXT NOT NULL DEFAULT '',
    market          TEXT NOT NULL DEFAULT '',
    side            TEXT NOT NULL,
    quantity        INTEGER NOT NULL,
    price           REAL NOT NULL,
    placed_at       INTEGER NOT NULL,
    date            TEXT NOT NULL,
    broker_order_id TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL,
    realised_pnl    REAL,
    realised_rate   REAL,
    reason          TEXT NOT NULL DEFAULT '',
    created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_user_date ON orders(user_id, date);

CREATE TABLE IF NOT EXISTS holdings (
    user_id        INTEGER NOT NULL,
    ticker         TEXT NOT NULL,
    name           TEXT NOT NULL DEFAULT '',
    market         TEXT NOT NULL DEFAULT '',
    quantity       INTEGER NOT NULL,
    avg_price      REAL NOT NULL,
    current_price  REAL NOT NULL DEFAULT 0,
    profit_rate    REAL NOT NULL DEFAULT 0,
    opened_at      INTEGER NOT NULL,
    above_ma20     INTEGER NOT NULL DEFAULT 0,
    trailing_armed INTEGER NOT NULL DEFAULT 0,
    exit_plan      TEXT,
    updated_at     INTEGER NOT NULL,
    PRIMARY KEY (user_id, ticker)
);

CREATE TABLE IF NOT EXISTS daily_performance (
    user_id        INTEGER NOT NULL,
    date           TEXT NOT NULL,
    total_assets   REAL NOT NULL DEFAULT 0,
    d2_cash        REAL NOT NULL DEFAULT 0,
    holdings_value REAL NOT NULL DEFAULT 0,
    invested       REAL NOT NULL DEFAULT 0,
    realised_pnl   REAL NOT NULL DEFAULT 0,
    num_holdings   INTEGER NOT NULL DEFAULT 0,
    updated_at     INTEGER NOT NULL,
    PRIMARY KEY (user_id, date)
);

CREATE TABLE IF NOT EXISTS alert_history (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id    INTEGER NOT NULL DEFAULT 0,
    ticker     TEXT NOT NULL DEFAULT '',
    kind       TEXT NOT NULL,
    level      TEXT NOT NULL,
    message    TEXT NOT NULL DEFAULT '',
    date       TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    UNIQUE (user_id, ticker, kind, date)
);

CREATE TABLE IF NOT EXISTS buy_suggestions (
    id                TEXT PRIMARY KEY,
    user_id           INTEGER NOT NULL,
    ticker            TEXT NOT NULL,
    name              TEXT NOT NULL DEFAULT '',
    market            TEXT NOT NULL DEFAULT '',
    score             INTEGER NOT NULL DEFAULT 0,
    recommended_price REAL NOT NULL DEFAULT 0,
    buy_band_high     REAL NOT NULL DEFAULT 0,
    target_price      REAL NOT NULL DEFAULT 0,
    stop_price        REAL NOT NULL DEFAULT 0,
    status            TEXT NOT NULL DEFAULT 'pending',
    created_at        INTEGER NOT NULL,
    expires_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_suggestions_user_status ON buy_suggestions(user_id, status);

CREATE TABLE IF NOT EXISTS virtual_balance (
    user_id    INTEGER PRIMARY KEY,
    cash       REAL NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS user_day_locks (
    user_id    INTEGER NOT NULL,
    date       TEXT NOT NULL,
    reason     TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    PRIMARY KEY (user_id, date)
);
`
