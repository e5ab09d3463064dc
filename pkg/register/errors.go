package register

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrLayoutConflict    = errors.New("layout name already used by another drawing")
	ErrProjectExists     = errors.New("project already exists")
	ErrMissingLayout     = errors.New("record has no layout name")
	ErrMissingProjectNum = errors.New("project number is required")
	ErrInvalidQuery      = errors.New("invalid query")
)

// DependentsError is returned when a project still owns drawings and the
// caller did not ask for a cascading delete.
type DependentsError struct {
	ProjectNumber string
	Count         int64
}

func (e *DependentsError) Error() string {
	return fmt.Sprintf("project %s has %d drawing(s); delete with cascade to remove them", e.ProjectNumber, e.Count)
}
