// Package runlog records training runs in a SQLite database under the log
// directory. Each run gets a UUID and rows for its validation passes and
// persisted checkpoints, which the CLI renders as history tables. The
// database is bookkeeping only; training never reads it back.
package runlog
