// Package pipeline orchestrates one collection session.
//
// A run takes the optional cross-process lock, opens a session, asks the
// schedule gate whether the following list is due, crawls it if so, always
// crawls the home timeline, and closes the session with a summary that is
// recorded as metrics and sent to the configured notifier. Each step writes a
// status entry to the session log.
package pipeline
