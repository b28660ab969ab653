package core

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/jo-hoe/goimagestore/internal/backend/database"
)

// ListOrder is the listing policy: newest uploads first.
const ListOrder = database.SortDescending

type CoreService struct {
	databaseService database.DatabaseService
	now             func() time.Time
}

type Option func(*CoreService)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(service *CoreService) {
		service.now = now
	}
}

// UpdateRequest carries the optional fields of an update. A nil field means "not sent".
type UpdateRequest struct {
	Name   *string
	Upload *Upload
}

type ImageContent struct {
	Data        []byte
	ContentType string
}

func NewCoreService(databaseService database.DatabaseService, opts ...Option) *CoreService {
	service := &CoreService{
		databaseService: databaseService,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (service *CoreService) CreateFile(ctx context.Context, name string, upload *Upload) (*database.FileRecord, error) {
	if err := ValidateUpload(upload); err != nil {
		return nil, err
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	now := service.timestamp()
	created, err := service.databaseService.CreateFile(ctx, &database.FileRecord{
		Name:         name,
		Filename:     upload.Filename,
		Image:        upload.Data,
		UploadDate:   now,
		ModifiedDate: now,
	})
	if err != nil {
		return nil, &StoreError{Op: "create file", Err: err}
	}

	slog.Debug("file created", "id", created.ID, "filename", created.Filename, "size", created.Size)
	return created, nil
}

func (service *CoreService) ListFiles(ctx context.Context) ([]*database.FileRecord, error) {
	files, err := service.databaseService.GetFiles(ctx, ListOrder)
	if err != nil {
		return nil, &StoreError{Op: "list files", Err: err}
	}
	return files, nil
}

func (service *CoreService) GetImage(ctx context.Context, id int64) (*ImageContent, error) {
	file, err := service.databaseService.GetFileByID(ctx, id)
	if err != nil {
		return nil, service.translate("get file", id, err)
	}
	return &ImageContent{
		Data:        file.Image,
		ContentType: ContentTypeForFilename(file.Filename),
	}, nil
}

func (service *CoreService) UpdateFile(ctx context.Context, id int64, request UpdateRequest) (*database.FileRecord, error) {
	if request.Name != nil {
		if err := ValidateName(*request.Name); err != nil {
			return nil, err
		}
	}
	if request.Upload != nil {
		if err := ValidateUpload(request.Upload); err != nil {
			return nil, err
		}
	}

	// nothing to change: report the current state without touching modified_date
	if request.Name == nil && request.Upload == nil {
		file, err := service.databaseService.GetFileByID(ctx, id)
		if err != nil {
			return nil, service.translate("get file", id, err)
		}
		return file, nil
	}

	patch := database.FilePatch{
		Name:         request.Name,
		ModifiedDate: service.timestamp(),
	}
	if request.Upload != nil {
		patch.File = &database.FileContent{
			Filename: request.Upload.Filename,
			Image:    request.Upload.Data,
		}
	}

	updated, err := service.databaseService.UpdateFile(ctx, id, patch)
	if err != nil {
		return nil, service.translate("update file", id, err)
	}

	slog.Debug("file updated", "id", updated.ID, "name_changed", request.Name != nil, "image_changed", request.Upload != nil)
	return updated, nil
}

func (service *CoreService) DeleteFile(ctx context.Context, id int64) (bool, error) {
	if err := service.databaseService.DeleteFile(ctx, id); err != nil {
		return false, service.translate("delete file", id, err)
	}
	slog.Debug("file deleted", "id", id)
	return true, nil
}

// Ready reports whether the store answers.
func (service *CoreService) Ready(ctx context.Context) bool {
	return service.databaseService.DoesDatabaseExist(ctx)
}

func (service *CoreService) Close() error {
	return service.databaseService.Close()
}

func (service *CoreService) translate(op string, id int64, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return &NotFoundError{ID: strconv.FormatInt(id, 10)}
	}
	return &StoreError{Op: op, Err: err}
}

// timestamp is truncated to the precision both stores keep.
func (service *CoreService) timestamp() time.Time {
	return service.now().UTC().Truncate(time.Microsecond)
}
