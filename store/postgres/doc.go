// Package postgres implements the store using pgx/v5 with raw SQL.
// Features: row-locked patch application (SELECT ... FOR UPDATE), JSONB
// prompt storage, embedded SQL migrations.
package postgres
