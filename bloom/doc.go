// Package bloom provides a best-effort, non-authoritative estimate of
// how many distinct peer addresses a node has seen, for the admin
// surface's diagnostics. It is never consulted by the KRPC engine.
package bloom
