package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const fileColumns = `id, name, filename, image, octet_length(image), upload_date, modified_date`

type PostgresDatabase struct {
	pool *pgxpool.Pool
}

func NewPostgresDatabase(ctx context.Context, connectionString string) (DatabaseService, error) {
	poolConfig, err := pgxpool.ParseConfig(connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &PostgresDatabase{pool: pool}, nil
}

func (p *PostgresDatabase) CreateDatabase(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS files (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		filename TEXT NOT NULL,
		image BYTEA NOT NULL,
		upload_date TIMESTAMPTZ NOT NULL,
		modified_date TIMESTAMPTZ NOT NULL
	)`)
	return err
}

func (p *PostgresDatabase) DoesDatabaseExist(ctx context.Context) bool {
	return p.pool.Ping(ctx) == nil
}

func (p *PostgresDatabase) Close() error {
	p.pool.Close()
	return nil
}

func (p *PostgresDatabase) CreateFile(ctx context.Context, file *FileRecord) (*FileRecord, error) {
	row := p.pool.QueryRow(ctx, `INSERT INTO files (name, filename, image, upload_date, modified_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+fileColumns,
		file.Name, file.Filename, file.Image, file.UploadDate, file.ModifiedDate)

	created, err := scanPostgresFile(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert file: %w", err)
	}
	return created, nil
}

func (p *PostgresDatabase) GetFiles(ctx context.Context, order SortOrder) ([]*FileRecord, error) {
	query := fmt.Sprintf(
		`SELECT id, name, filename, octet_length(image), upload_date, modified_date
		FROM files ORDER BY upload_date %s, id %s`,
		order.sql(), order.sql())

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	files := make([]*FileRecord, 0)
	for rows.Next() {
		file := &FileRecord{}
		if err := rows.Scan(&file.ID, &file.Name, &file.Filename, &file.Size, &file.UploadDate, &file.ModifiedDate); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		file.UploadDate = file.UploadDate.UTC()
		file.ModifiedDate = file.ModifiedDate.UTC()
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate files: %w", err)
	}
	return files, nil
}

func (p *PostgresDatabase) GetFileByID(ctx context.Context, id int64) (*FileRecord, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, id)
	file, err := scanPostgresFile(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return file, nil
}

func (p *PostgresDatabase) UpdateFile(ctx context.Context, id int64, patch FilePatch) (*FileRecord, error) {
	var (
		filename *string
		image    []byte // nil encodes as NULL
	)
	if patch.File != nil {
		filename = &patch.File.Filename
		image = patch.File.Image
	}

	row := p.pool.QueryRow(ctx, `UPDATE files SET
		name = COALESCE($1::text, name),
		filename = COALESCE($2::text, filename),
		image = COALESCE($3::bytea, image),
		modified_date = GREATEST($4::timestamptz, upload_date)
		WHERE id = $5
		RETURNING `+fileColumns,
		patch.Name, filename, image, patch.ModifiedDate, id)

	file, err := scanPostgresFile(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update file: %w", err)
	}
	return file, nil
}

func (p *PostgresDatabase) DeleteFile(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPostgresFile(row pgx.Row) (*FileRecord, error) {
	file := &FileRecord{}
	err := row.Scan(&file.ID, &file.Name, &file.Filename, &file.Image, &file.Size, &file.UploadDate, &file.ModifiedDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	file.UploadDate = file.UploadDate.UTC()
	file.ModifiedDate = file.ModifiedDate.UTC()
	return file, nil
}
