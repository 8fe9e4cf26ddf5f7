// Package statusapi serves a read-only HTTP view of the pipeline: recent
// sessions, the schedule gate, document sizes and Prometheus metrics.
package statusapi
