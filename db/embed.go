// Package db embeds the PostgreSQL schema. Seed data under db/seed is read
// from disk by cmd/seed-db.
package db

import _ "embed"

// Schema holds the idempotent DDL for menu items, tables, orders, order
// lines, status history and staff keys.
//
//go:embed migrations/001_schema.sql
var Schema string
