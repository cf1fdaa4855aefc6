package coordinator

import "fmt"

// The error taxonomy the operation boundary maps to structured responses.
// RequiredDependencyFailure must stay distinguishable from DependencyFailure:
// one aborts a story, the other only degrades it.

// InvalidInputError reports bad caller input. Never retried.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

// NotFoundError reports an unknown story ID
type NotFoundError struct {
	StoryID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("story %q not found", e.StoryID)
}

// DependencyFailure reports a best-effort collaborator failing. The workflow
// continues degraded; this error only shows up in logs and event data.
type DependencyFailure struct {
	Collaborator string
	Stage        string
	Err          error
}

func (e *DependencyFailure) Error() string {
	return fmt.Sprintf("%s failed during %s: %v", e.Collaborator, e.Stage, e.Err)
}

func (e *DependencyFailure) Unwrap() error {
	return e.Err
}

// RequiredDependencyFailure reports a mandatory collaborator failing after
// its retry budget, or returning an explicit error/empty/skip. Fatal for the
// story; it names the failing collaborator and stage for triage.
type RequiredDependencyFailure struct {
	Collaborator string
	Stage        string
	Err          error
}

func (e *RequiredDependencyFailure) Error() string {
	return fmt.Sprintf("required collaborator %s failed during %s: %v", e.Collaborator, e.Stage, e.Err)
}

func (e *RequiredDependencyFailure) Unwrap() error {
	return e.Err
}

// RoutingFailure reports a downstream hand-off failing after the current
// step's own work succeeded. The produced artifact is retained.
type RoutingFailure struct {
	Target string
	Err    error
}

func (e *RoutingFailure) Error() string {
	return fmt.Sprintf("hand-off to %s failed: %v", e.Target, e.Err)
}

func (e *RoutingFailure) Unwrap() error {
	return e.Err
}
