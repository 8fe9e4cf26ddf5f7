// Package schedule implements the probabilistic gate that spreads the
// following collection over a few runs a week.
package schedule
