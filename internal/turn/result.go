package turn

import (
	"time"

	"github.com/fyrsmithlabs/afk/internal/repository"
)

// Result is the frozen record of a completed turn. It is created once by
// Finish, stored by value in the session history, and never mutated.
type Result struct {
	// Number is the turn's sequential number within the session.
	Number int

	// Label is the transition label the turn ran under.
	Label Label

	// Outcome is the verdict token from the commit message trailer;
	// empty when the trailer was absent.
	Outcome repository.Outcome

	// CommitHash is the single commit the turn produced.
	CommitHash repository.Revision

	// Message is the commit's full message text.
	Message string

	// LogPath is the turn's log file.
	LogPath string

	// Timestamp is when the turn started, in UTC.
	Timestamp time.Time
}
