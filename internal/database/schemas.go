package database

// Schemas maps a database's friendly Name to its embedded DDL. The core
// keeps every {paper,live}_* table family (spec.md section 3/6) in one
// database named "orders" - the two-mode separation is enforced entirely
// by table-name prefix and by the repository layer never crossing modes,
// not by physical file separation.
var Schemas = map[string]string{
	"orders": ordersSchema,
}

const ordersSchema = `
CREATE TABLE IF NOT EXISTS paper_execution_plans (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	exchange TEXT NOT NULL,
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	legs TEXT NOT NULL DEFAULT '[]',
	started_at INTEGER NOT NULL,
	finished_at INTEGER,
	error_message TEXT
);
CREATE TABLE IF NOT EXISTS live_execution_plans (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	exchange TEXT NOT NULL,
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	legs TEXT NOT NULL DEFAULT '[]',
	started_at INTEGER NOT NULL,
	finished_at INTEGER,
	error_message TEXT
);

CREATE TABLE IF NOT EXISTS paper_orders (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	plan_id TEXT NOT NULL,
	leg_id TEXT NOT NULL,
	exchange TEXT NOT NULL,
	account_type TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	order_type TEXT NOT NULL,
	quantity TEXT NOT NULL,
	price TEXT,
	status TEXT NOT NULL,
	filled_quantity TEXT NOT NULL DEFAULT '0',
	average_price TEXT NOT NULL DEFAULT '0',
	fee TEXT NOT NULL DEFAULT '0',
	fee_currency TEXT,
	client_order_id TEXT NOT NULL,
	external_order_id TEXT,
	metadata TEXT NOT NULL DEFAULT '{}',
	UNIQUE(user_id, client_order_id)
);
CREATE TABLE IF NOT EXISTS live_orders (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	plan_id TEXT NOT NULL,
	leg_id TEXT NOT NULL,
	exchange TEXT NOT NULL,
	account_type TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	order_type TEXT NOT NULL,
	quantity TEXT NOT NULL,
	price TEXT,
	status TEXT NOT NULL,
	filled_quantity TEXT NOT NULL DEFAULT '0',
	average_price TEXT NOT NULL DEFAULT '0',
	fee TEXT NOT NULL DEFAULT '0',
	fee_currency TEXT,
	client_order_id TEXT NOT NULL,
	external_order_id TEXT,
	metadata TEXT NOT NULL DEFAULT '{}',
	UNIQUE(user_id, client_order_id)
);

CREATE TABLE IF NOT EXISTS paper_fills (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	order_id TEXT NOT NULL,
	exchange TEXT NOT NULL,
	account_type TEXT NOT NULL,
	symbol TEXT NOT NULL,
	price TEXT NOT NULL,
	quantity TEXT NOT NULL,
	fee TEXT NOT NULL DEFAULT '0',
	fee_currency TEXT,
	external_trade_id TEXT NOT NULL UNIQUE,
	external_order_id TEXT,
	raw TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS live_fills (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	order_id TEXT NOT NULL,
	exchange TEXT NOT NULL,
	account_type TEXT NOT NULL,
	symbol TEXT NOT NULL,
	price TEXT NOT NULL,
	quantity TEXT NOT NULL,
	fee TEXT NOT NULL DEFAULT '0',
	fee_currency TEXT,
	external_trade_id TEXT NOT NULL UNIQUE,
	external_order_id TEXT,
	raw TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS paper_positions (
	user_id TEXT NOT NULL,
	exchange TEXT NOT NULL,
	account_type TEXT NOT NULL,
	instrument TEXT NOT NULL,
	quantity TEXT NOT NULL DEFAULT '0',
	average_entry_price TEXT,
	PRIMARY KEY (user_id, exchange, account_type, instrument)
);
CREATE TABLE IF NOT EXISTS live_positions (
	user_id TEXT NOT NULL,
	exchange TEXT NOT NULL,
	account_type TEXT NOT NULL,
	instrument TEXT NOT NULL,
	quantity TEXT NOT NULL DEFAULT '0',
	average_entry_price TEXT,
	PRIMARY KEY (user_id, exchange, account_type, instrument)
);

CREATE TABLE IF NOT EXISTS paper_ledger_entries (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	exchange TEXT NOT NULL,
	account_type TEXT NOT NULL,
	asset TEXT NOT NULL,
	signed_delta TEXT NOT NULL,
	ref_type TEXT NOT NULL,
	ref_id TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS live_ledger_entries (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	exchange TEXT NOT NULL,
	account_type TEXT NOT NULL,
	asset TEXT NOT NULL,
	signed_delta TEXT NOT NULL,
	ref_type TEXT NOT NULL,
	ref_id TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS paper_balances (
	user_id TEXT NOT NULL,
	asset TEXT NOT NULL,
	balance TEXT NOT NULL DEFAULT '0',
	PRIMARY KEY (user_id, asset)
);

CREATE TABLE IF NOT EXISTS paper_pnl (
	id TEXT PRIMARY KEY,
	plan_id TEXT NOT NULL,
	symbol TEXT,
	quote_currency TEXT,
	profit TEXT NOT NULL,
	profit_rate REAL,
	total_notional TEXT NOT NULL,
	total_fee TEXT NOT NULL,
	kind TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS live_pnl (
	id TEXT PRIMARY KEY,
	plan_id TEXT NOT NULL,
	symbol TEXT,
	quote_currency TEXT,
	profit TEXT NOT NULL,
	profit_rate REAL,
	total_notional TEXT NOT NULL,
	total_fee TEXT NOT NULL,
	kind TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
`
