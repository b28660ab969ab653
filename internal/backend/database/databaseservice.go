package database

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no row matches the requested id.
var ErrNotFound = errors.New("file not found")

type DatabaseService interface {
	// CreateDatabase ensures the files table exists (idempotent).
	CreateDatabase(ctx context.Context) error
	DoesDatabaseExist(ctx context.Context) bool
	Close() error

	// CreateFile inserts the record and returns it with the id assigned by the database.
	CreateFile(ctx context.Context, file *FileRecord) (*FileRecord, error)
	// GetFiles scans the whole table ordered by upload date. Image bytes are not loaded.
	GetFiles(ctx context.Context, order SortOrder) ([]*FileRecord, error)
	GetFileByID(ctx context.Context, id int64) (*FileRecord, error)
	// UpdateFile applies the patch in a single statement so that a concurrent
	// delete either wins entirely or sees the updated row.
	UpdateFile(ctx context.Context, id int64, patch FilePatch) (*FileRecord, error)
	DeleteFile(ctx context.Context, id int64) error
}
