package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite has no native timestamp type; dates are stored as Unix microseconds.
type SQLiteDatabase struct {
	db               *sql.DB
	connectionString string
}

func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}

	// A single connection serializes writers and keeps ":memory:" databases
	// shared across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
	}, nil
}

func (s *SQLiteDatabase) CreateDatabase(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		filename TEXT NOT NULL,
		image BLOB NOT NULL,
		upload_date INTEGER NOT NULL,
		modified_date INTEGER NOT NULL
	)`)
	return err
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) DoesDatabaseExist(ctx context.Context) bool {
	// In SQLite, the database file is created when you connect to it.
	// So we can assume it exists if we can successfully ping the database.
	err := s.db.PingContext(ctx)
	return err == nil
}

func (s *SQLiteDatabase) CreateFile(ctx context.Context, file *FileRecord) (*FileRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"INSERT INTO files (name, filename, image, upload_date, modified_date) VALUES (?, ?, ?, ?, ?) RETURNING id",
		file.Name, file.Filename, file.Image, toUnixMicro(file.UploadDate), toUnixMicro(file.ModifiedDate))

	var id int64
	if err := row.Scan(&id); err != nil {
		return nil, fmt.Errorf("failed to insert file: %w", err)
	}

	created := *file
	created.ID = id
	created.Size = int64(len(file.Image))
	created.UploadDate = fromUnixMicro(toUnixMicro(file.UploadDate))
	created.ModifiedDate = fromUnixMicro(toUnixMicro(file.ModifiedDate))
	return &created, nil
}

func (s *SQLiteDatabase) GetFiles(ctx context.Context, order SortOrder) ([]*FileRecord, error) {
	query := fmt.Sprintf(
		"SELECT id, name, filename, length(image), upload_date, modified_date FROM files ORDER BY upload_date %s, id %s",
		order.sql(), order.sql())
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()

	files := make([]*FileRecord, 0)
	for rows.Next() {
		var (
			file               FileRecord
			uploaded, modified int64
		)
		if err := rows.Scan(&file.ID, &file.Name, &file.Filename, &file.Size, &uploaded, &modified); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		file.UploadDate = fromUnixMicro(uploaded)
		file.ModifiedDate = fromUnixMicro(modified)
		files = append(files, &file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate files: %w", err)
	}
	return files, nil
}

func (s *SQLiteDatabase) GetFileByID(ctx context.Context, id int64) (*FileRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, filename, image, upload_date, modified_date FROM files WHERE id = ?", id)
	return scanSQLiteFile(row)
}

func (s *SQLiteDatabase) UpdateFile(ctx context.Context, id int64, patch FilePatch) (*FileRecord, error) {
	var name, filename, image any
	if patch.Name != nil {
		name = *patch.Name
	}
	if patch.File != nil {
		filename = patch.File.Filename
		image = patch.File.Image
	}

	row := s.db.QueryRowContext(ctx, `UPDATE files SET
		name = COALESCE(?, name),
		filename = COALESCE(?, filename),
		image = COALESCE(?, image),
		modified_date = MAX(?, upload_date)
		WHERE id = ?
		RETURNING id, name, filename, image, upload_date, modified_date`,
		name, filename, image, toUnixMicro(patch.ModifiedDate), id)
	return scanSQLiteFile(row)
}

func (s *SQLiteDatabase) DeleteFile(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM files WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSQLiteFile(row *sql.Row) (*FileRecord, error) {
	var (
		file               FileRecord
		uploaded, modified int64
	)
	if err := row.Scan(&file.ID, &file.Name, &file.Filename, &file.Image, &uploaded, &modified); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	file.Size = int64(len(file.Image))
	file.UploadDate = fromUnixMicro(uploaded)
	file.ModifiedDate = fromUnixMicro(modified)
	return &file, nil
}

func toUnixMicro(t time.Time) int64 {
	return t.UnixMicro()
}

func fromUnixMicro(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}
