// Package status owns the project lifecycle state machine.
//
// Every status change goes through Tracker, which rejects illegal transitions
// with a TransitionError instead of silently ignoring them. Transitions are
// compare-and-set against the persisted status, so two callers racing to
// start work on the same project cannot both succeed.
package status
