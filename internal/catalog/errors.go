package catalog

import (
	"errors"

	"reelsub/internal/services"
)

var (
	// ErrProjectNotFound reports an unknown project id.
	ErrProjectNotFound = errors.New("project not found")
	// ErrSubtitleNotFound reports a project without a live subtitle.
	ErrSubtitleNotFound = errors.New("subtitle not found")
)

func notFound(operation, id string, sentinel error) error {
	return services.Wrap(services.ErrNotFound, "catalog", operation, id, sentinel)
}
