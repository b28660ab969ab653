package database

import "time"

type FileRecord struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	Filename     string    `db:"filename"`      // original upload filename, drives the served content type
	Image        []byte    `db:"image"`         // raw image bytes, nil in listings
	Size         int64     `db:"size"`          // length of the image column, filled even when Image is not loaded
	UploadDate   time.Time `db:"upload_date"`   // set once on insert
	ModifiedDate time.Time `db:"modified_date"` // bumped on every update
}

// FileContent is a replacement payload; filename and bytes always change together.
type FileContent struct {
	Filename string
	Image    []byte
}

// FilePatch describes an in-place update. Nil fields are left untouched.
type FilePatch struct {
	Name         *string
	File         *FileContent
	ModifiedDate time.Time
}

type SortOrder int

const (
	SortDescending SortOrder = iota
	SortAscending
)

func (o SortOrder) sql() string {
	if o == SortAscending {
		return "ASC"
	}
	return "DESC"
}

func (o SortOrder) String() string {
	return o.sql()
}
