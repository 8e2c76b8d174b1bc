// Package store provides persistence for inventory items.
// It keeps a single SQLite connection for the application lifetime,
// in WAL mode, and commits every operation immediately.
package store
