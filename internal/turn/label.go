package turn

import (
	"fmt"
	"regexp"
)

// labelPattern is the shape of a transition label: a lowercase letter
// followed by letters, digits, underscores, dots, or dashes.
var labelPattern = regexp.MustCompile(`^[a-z][a-z0-9_.-]*$`)

// Label is a validated transition label, an immutable value with
// structural equality. It names what kind of turn this is ("coding",
// "review", "fix-tests") and appears in the turn's log file name.
type Label string

// ParseLabel validates s and returns it as a Label.
func ParseLabel(s string) (Label, error) {
	if !labelPattern.MatchString(s) {
		return "", fmt.Errorf("label must match %s, got %q", labelPattern, s)
	}
	return Label(s), nil
}

func (l Label) String() string { return string(l) }
