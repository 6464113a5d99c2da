// Package stores provides the operation journal for iotwb.
//
// Every phase command run by the CLI is recorded in a SQLite database
// (~/.iotwb/journal.db by default) together with the telemetry events it
// emitted. The database runs in WAL mode with foreign keys enabled, and its
// schema is managed by golang-migrate from migrations embedded in the binary.
//
// Journal wraps a Store with the calls the CLI needs: Begin and Finish around
// a command, Subscriber to attach to the telemetry event publisher, History
// for `iotwb history`, and Prune for retention.
package stores
