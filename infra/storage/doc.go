// Package storage provides persistent implementations of the checkpoint,
// series and yield stores: SQLite, plain files and JSONL with optional
// rotation.
package storage
