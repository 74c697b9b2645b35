package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"reelsub/internal/blob"
	"reelsub/internal/catalog"
	"reelsub/internal/config"
	"reelsub/internal/logging"
	"reelsub/internal/media/ffprobe"
	"reelsub/internal/services"
	"reelsub/internal/textutil"
)

// Prober reads container metadata from a local media file.
type Prober interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

// Upload describes a media file already written to local disk.
type Upload struct {
	Owner    string
	Filename string
	Path     string
}

// Intake validates uploads and registers them as projects.
type Intake struct {
	catalog *catalog.Store
	blobs   blob.Store
	prober  Prober
	limits  config.Limits
	logger  *slog.Logger
}

// NewIntake wires an intake.
func NewIntake(limits config.Limits, store *catalog.Store, blobs blob.Store, prober Prober, logger *slog.Logger) *Intake {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Intake{
		catalog: store,
		blobs:   blobs,
		prober:  prober,
		limits:  limits,
		logger:  logging.NewComponentLogger(logger, "intake"),
	}
}

// Register checks the upload and creates a project in the uploading state
// with its media stored under <owner segment>/<project id><ext>.
func (i *Intake) Register(ctx context.Context, upload Upload) (*catalog.Project, error) {
	owner := strings.TrimSpace(upload.Owner)
	if owner == "" {
		return nil, invalid("owner is required")
	}
	filename := textutil.SanitizeFileName(filepath.Base(strings.TrimSpace(upload.Filename)))
	if filename == "" || filename == "." {
		filename = filepath.Base(upload.Path)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if err := i.checkFile(ctx, upload.Path, ext); err != nil {
		return nil, err
	}

	project, err := i.catalog.CreateProject(ctx, catalog.NewProject{Owner: owner, MediaFilename: filename})
	if err != nil {
		return nil, err
	}
	logger := logging.WithContext(services.WithProjectID(ctx, project.ID), i.logger)

	key := fmt.Sprintf("%s/%s%s", textutil.KeySegment(owner), project.ID, ext)
	ref, err := i.blobs.UploadFile(ctx, key, upload.Path)
	if err != nil {
		i.discard(ctx, project.ID)
		return nil, err
	}
	if err := i.catalog.SetMedia(ctx, project.ID, ref, filename); err != nil {
		if _, delErr := i.blobs.Delete(ctx, ref); delErr != nil {
			logger.Warn("media cleanup failed", logging.Error(delErr))
		}
		i.discard(ctx, project.ID)
		return nil, err
	}
	project.MediaPath = ref
	project.MediaFilename = filename
	logger.Info("upload registered",
		logging.String(logging.FieldProjectID, project.ID),
		logging.String("owner", owner),
		logging.String("media_path", ref))
	return project, nil
}

func (i *Intake) checkFile(ctx context.Context, path, ext string) error {
	if len(i.limits.AllowedExtensions) > 0 && !slices.Contains(i.limits.AllowedExtensions, ext) {
		return services.WithHint(invalid(fmt.Sprintf("file type %q is not allowed", ext)),
			"allowed: "+strings.Join(i.limits.AllowedExtensions, ", "))
	}
	info, err := os.Stat(path)
	if err != nil {
		return services.Wrap(services.ErrValidation, "intake", "stat", "upload is not readable", err)
	}
	if info.IsDir() {
		return invalid("upload is a directory")
	}
	if info.Size() == 0 {
		return invalid("upload is empty")
	}
	if i.limits.MaxUploadBytes > 0 && info.Size() > i.limits.MaxUploadBytes {
		return invalid(fmt.Sprintf("upload is %d bytes; limit is %d", info.Size(), i.limits.MaxUploadBytes))
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return services.Wrap(services.ErrValidation, "intake", "detect type", "upload is not readable", err)
	}
	if !isVideo(mtype) {
		return invalid(fmt.Sprintf("upload looks like %s, not video", mtype.String()))
	}

	if i.prober == nil {
		return nil
	}
	probe, err := i.prober.Inspect(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return services.Wrap(services.ErrValidation, "intake", "probe", "media could not be read", err)
	}
	if probe.VideoStreamCount() == 0 {
		return invalid("upload has no video stream")
	}
	if limit := i.limits.MaxDurationSeconds; limit > 0 && probe.DurationSeconds() > float64(limit) {
		return invalid(fmt.Sprintf("video runs %.0fs; limit is %ds", probe.DurationSeconds(), limit))
	}
	return nil
}

func (i *Intake) discard(ctx context.Context, projectID string) {
	if err := i.catalog.DeleteProject(ctx, projectID); err != nil {
		logging.WarnWithContext(i.logger, "failed to remove half-registered project", "intake_rollback_failed",
			logging.String(logging.FieldProjectID, projectID),
			logging.String(logging.FieldImpact, "an empty project remains in uploading state"),
			logging.String(logging.FieldErrorHint, "delete the project manually"),
			logging.Error(err))
	}
}

func isVideo(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "video/") {
			return true
		}
	}
	return false
}

func invalid(message string) error {
	return services.Wrap(services.ErrValidation, "intake", "register", message, nil)
}
