package status

import (
	"fmt"
	"slices"

	"reelsub/internal/catalog"
	"reelsub/internal/services"
)

// allowed lists the legal successors of each status. completed and failed
// return to processing only through regeneration.
var allowed = map[catalog.Status][]catalog.Status{
	catalog.StatusUploading:  {catalog.StatusProcessing},
	catalog.StatusProcessing: {catalog.StatusCompleted, catalog.StatusFailed},
	catalog.StatusCompleted:  {catalog.StatusProcessing},
	catalog.StatusFailed:     {catalog.StatusProcessing},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to catalog.Status) bool {
	return slices.Contains(allowed[from], to)
}

// sourcesFor returns every status that may move to to.
func sourcesFor(to catalog.Status) []catalog.Status {
	var sources []catalog.Status
	for _, from := range []catalog.Status{
		catalog.StatusUploading,
		catalog.StatusProcessing,
		catalog.StatusCompleted,
		catalog.StatusFailed,
	} {
		if CanTransition(from, to) {
			sources = append(sources, from)
		}
	}
	return sources
}

// directSources returns the statuses that may move to to without a
// dedicated entry point. Regeneration is excluded because it must drop the
// subtitle first.
func directSources(to catalog.Status) []catalog.Status {
	var sources []catalog.Status
	for _, from := range sourcesFor(to) {
		if to == catalog.StatusProcessing && isTerminal(from) {
			continue
		}
		sources = append(sources, from)
	}
	return sources
}

func isTerminal(s catalog.Status) bool {
	return s == catalog.StatusCompleted || s == catalog.StatusFailed
}

// TransitionError reports a rejected status change.
type TransitionError struct {
	ProjectID string
	From      catalog.Status
	To        catalog.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("project %s: cannot move from %s to %s", e.ProjectID, e.From, e.To)
}

// Unwrap lets errors.Is match services.ErrInvalidTransition.
func (e *TransitionError) Unwrap() error {
	return services.ErrInvalidTransition
}
