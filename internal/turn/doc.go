// Package turn models one execution attempt against the agent CLI.
//
// A Turn is a transient state machine: Initial → InProgress →
// {Finished, Aborted}. Transitions only move forward; an aborted turn is
// terminal and a new Turn is required for the next attempt. Each turn owns
// a log file under the session's log directory, named
// turn-NNN-<label>.log, which is always preserved. It is the primary
// debugging artifact when a turn never reaches Finished.
//
// Turn numbers are supplied by the session layer; a Turn never assigns
// its own.
package turn
