package store

import "embed"

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

//go:embed migrations/cassandra/*.cql
var cassandraMigrations embed.FS
