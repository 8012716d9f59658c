// Package cache stores successful compilations in SQLite, keyed by the
// content hash of the compiler identity, the source and the options.
//
// Records are CBOR-encoded with canonical options. Failed compilations are
// never cached, so a fixed compiler or a changed environment is picked up on
// the next attempt.
package cache
