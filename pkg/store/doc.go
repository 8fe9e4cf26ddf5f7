// Package store owns the JSON documents the pipeline collects into.
//
// Every write goes through WriteJSON, which replaces a document atomically.
// Merges are idempotent: an item whose id is already stored is skipped, so
// replaying a page never duplicates data. A document that fails to decode is
// copied to <path>.corrupt-<unix> and treated as empty.
package store
