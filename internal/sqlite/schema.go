// Package sqlite implements the SQLite plan store backend.
package sqlite

// Schema DDL. Each row holds one plan document; position preserves the
// collection order that ReadAll returns.
const (
	createPlans = `CREATE TABLE IF NOT EXISTS plans (
    plan_id TEXT PRIMARY KEY,
    position INTEGER NOT NULL,
    document TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createPlans,
}
