// Package collector is the paginated collection engine shared by the
// following and timeline resources.
//
// Collect runs a small state machine: fetch a page, drop ids already seen,
// project and merge the rest, then decide whether to stop or sleep before
// the next page. Retryable failures cool down and retry the same cursor;
// any sleep that would overrun the budget ends the crawl instead.
package collector
