// Package migrations embeds the goose migrations for the sync tables.
// In production the schema is owned by the web application; these exist
// for local development and integration environments.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
