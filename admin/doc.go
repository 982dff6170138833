// Package admin exposes a read-only HTTP surface for node diagnostics:
// health, routing table statistics, and peer-count estimates. It is
// entirely separate from the KRPC wire protocol and never mutates any
// DHT state.
package admin
