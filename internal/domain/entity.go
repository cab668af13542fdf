package domain

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidEntityID rejects ids that cannot travel as a single URL path segment.
var ErrInvalidEntityID = errors.New("invalid entity id")

var entityIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

// ValidateEntityID accepts 1 to 128 ASCII letters, digits, '_', '.' and '-',
// except the dot segments "." and "..".
func ValidateEntityID(id string) error {
	if !entityIDPattern.MatchString(id) || id == "." || id == ".." {
		return fmt.Errorf("%w %q: use letters, digits, '_', '.' or '-'", ErrInvalidEntityID, id)
	}
	return nil
}
