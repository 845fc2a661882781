package repository

import (
	"regexp"
	"strings"
)

// Revision identifies an immutable repository state by its full hex hash.
// Revisions are produced by git and only observed here; the zero value
// means "no revision" (for example an unborn HEAD).
type Revision string

// String returns the full hex hash.
func (r Revision) String() string { return string(r) }

// Short returns the abbreviated hash used in human-facing summaries.
func (r Revision) Short() string {
	if len(r) < 7 {
		return string(r)
	}
	return string(r[:7])
}

// CommitRecord is a read-only view of a single commit: its hash and the
// full message text.
type CommitRecord struct {
	Hash    Revision
	Message string
}

// Subject returns the first line of the commit message.
func (c CommitRecord) Subject() string {
	subject, _, _ := strings.Cut(c.Message, "\n")
	return strings.TrimSpace(subject)
}

// Summary returns the short form "abc1234: subject" used when enumerating
// commits in failure messages.
func (c CommitRecord) Summary() string {
	return c.Hash.Short() + ": " + c.Subject()
}

// Outcome is the machine-readable verdict token parsed from the
// "outcome:" trailer of a commit message. Empty means absent. Only
// success and failure are built in; any other token passes through as a
// custom outcome.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// outcomePattern matches an "outcome: <token>" trailer line. The match is
// case-insensitive because LLMs capitalize unpredictably.
var outcomePattern = regexp.MustCompile(`(?im)^outcome:\s*(.+)$`)

// ParseOutcome extracts the outcome token from a commit message.
//
// The last occurrence wins, so a trailer always beats identical-looking
// text in the body. Returns the empty Outcome when no line matches.
func ParseOutcome(message string) Outcome {
	var outcome Outcome
	for _, match := range outcomePattern.FindAllStringSubmatch(message, -1) {
		candidate := strings.TrimSpace(match[1])
		if candidate == "" {
			continue
		}
		outcome = Outcome(strings.ToLower(candidate))
	}
	return outcome
}
