// Package session is the aggregate root tying driver, repository, and
// turns together.
//
// A session is a named, ordered sequence of turns anchored to one
// repository. It allocates turn numbers, enforces the exactly-one-commit
// invariant for every completed turn, records immutable results, and
// anchors turn boundaries as permanent tags in the afk-<name>-<n>
// namespace. Tag 0 marks the session bootstrap; tag N marks the boundary
// commit of turn N. The tags are the rewind mechanism: checking out tag N
// reproduces the state after turn N, and branching from it with a new
// session name resumes work.
//
// Sessions are synchronous and single-caller: ExecuteTurn blocks for one
// full agent invocation and turns never run concurrently within a
// session.
package session
