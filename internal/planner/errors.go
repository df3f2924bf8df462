// file: internal/planner/errors.go
// version: 1.0.0
// guid: 6c2f9a4b-1d8e-4b3c-9f5a-7e0d2c4b6a8f

package planner

import "fmt"

// TemplateError reports a template token that could not be resolved: either
// the token is unknown, or its value is empty and the token does not sit in
// a droppable segment of the template.
type TemplateError struct {
	Token    string
	Template string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("naming template %q: no value for token %s", e.Template, e.Token)
}

// CollisionError reports two or more tracks in the same plan rendering to
// the same destination path.
type CollisionError struct {
	Dst     string
	Sources []string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("destination collision: %d tracks map to %s", len(e.Sources), e.Dst)
}

// DestinationExistsError reports an on-disk file already occupying a planned
// destination that is not one of the plan's own source files.
type DestinationExistsError struct {
	Dst string
}

func (e *DestinationExistsError) Error() string {
	return fmt.Sprintf("destination already exists: %s", e.Dst)
}
