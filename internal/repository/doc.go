// Package repository wraps all read and mutate operations against the
// session's git repository.
//
// The facade is pure observation and mutation with no policy: HEAD lookup,
// commit message retrieval, outcome trailer parsing, commit-range queries,
// bootstrap (init + empty commit), and boundary tags. Deciding what a commit
// delta means belongs to the session layer.
//
// The implementation is backed by go-git, so no git binary is required on
// the search path and tests can build real repositories in a temp dir.
//
// # Failure policy
//
// Any underlying go-git failure surfaces as a plain wrapped error carrying
// the diagnostic text verbatim. There is no error hierarchy on top.
package repository
