// Package export copies the pipeline's JSON documents into SQL tables.
//
// Every document gets a table with a TEXT primary key. Keys found in the
// documents become TEXT columns on first sight, so the schema follows the
// data without migrations. Nested values are stored as JSON text.
package export
