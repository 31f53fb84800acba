// Package db embeds the database schema applied on startup.
package db

import _ "embed"

// Schema holds the DDL for every marketplace table. The statements are
// idempotent (CREATE ... IF NOT EXISTS) so the schema can be re-applied on
// every boot.
//
//go:embed migrations/001_schema.sql
var Schema string
