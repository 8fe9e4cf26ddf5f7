// Package session holds the per-run Session value and the append-only
// session log (logging.json) that audits every run.
package session
