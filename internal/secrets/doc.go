// Package secrets redacts credentials from text before it is written to the
// memory store.
//
// Users paste keys into chat more often than one would hope. Anything the
// extractor turns into a memory passes through a Scrubber first, so a
// recalled fact never carries a live credential back into a prompt.
package secrets
