// Package store persists the mapping from info-hash to the swarm of peers
// announced for it. FileStore is the default, append-only on-disk backend;
// MySQLStore is an alternate backend for deployments that already run a
// MySQL instance for other bookkeeping.
package store
