// Package storage defines the statement store that backs the chatbot's
// trained knowledge, together with the sentinel errors shared by the
// store implementations.
//
// Implementations live in sub-packages: memory (process lifetime only),
// sqlite (single file, the default) and postgres (shared database).
// Training writes statements once at startup; the chatbot then loads
// them into its own read-only index and never touches the store on the
// request path.
package storage
