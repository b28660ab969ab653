package database

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestDB(t *testing.T) DatabaseService {
	t.Helper()

	ds, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteDatabase error: %v", err)
	}
	if err := ds.CreateDatabase(context.Background()); err != nil {
		t.Fatalf("CreateDatabase error: %v", err)
	}
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func insertTestFile(t *testing.T, ds DatabaseService, name string, image []byte, uploaded time.Time) *FileRecord {
	t.Helper()

	created, err := ds.CreateFile(context.Background(), &FileRecord{
		Name:         name,
		Filename:     name + ".png",
		Image:        image,
		UploadDate:   uploaded,
		ModifiedDate: uploaded,
	})
	if err != nil {
		t.Fatalf("CreateFile(%s) error: %v", name, err)
	}
	return created
}

func TestSQLite_DoesDatabaseExist(t *testing.T) {
	ds := newTestDB(t)
	if !ds.DoesDatabaseExist(context.Background()) {
		t.Fatalf("expected DoesDatabaseExist to return true")
	}
}

func TestSQLite_CreateDatabase_Idempotent(t *testing.T) {
	ds := newTestDB(t)
	if err := ds.CreateDatabase(context.Background()); err != nil {
		t.Fatalf("second CreateDatabase error: %v", err)
	}
}

func TestSQLite_CreateFile_AssignsIDs(t *testing.T) {
	ds := newTestDB(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first := insertTestFile(t, ds, "cat", []byte{0x89, 0x50}, base)
	second := insertTestFile(t, ds, "dog", []byte{0xff, 0xd8}, base.Add(time.Minute))

	if first.ID != 1 {
		t.Errorf("expected first id 1, got %d", first.ID)
	}
	if second.ID <= first.ID {
		t.Errorf("expected increasing ids, got %d then %d", first.ID, second.ID)
	}
	if first.Size != 2 {
		t.Errorf("expected size 2, got %d", first.Size)
	}
	if !first.UploadDate.Equal(base) {
		t.Errorf("expected upload date %v, got %v", base, first.UploadDate)
	}
}

func TestSQLite_GetFiles_Order(t *testing.T) {
	ds := newTestDB(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	older := insertTestFile(t, ds, "older", []byte("a"), base)
	newer := insertTestFile(t, ds, "newer", []byte("bb"), base.Add(time.Hour))
	// same upload date as newer; id breaks the tie
	tie := insertTestFile(t, ds, "tie", []byte("ccc"), base.Add(time.Hour))

	desc, err := ds.GetFiles(context.Background(), SortDescending)
	if err != nil {
		t.Fatalf("GetFiles(desc) error: %v", err)
	}
	wantDesc := []int64{tie.ID, newer.ID, older.ID}
	if len(desc) != len(wantDesc) {
		t.Fatalf("expected %d files, got %d", len(wantDesc), len(desc))
	}
	for i, id := range wantDesc {
		if desc[i].ID != id {
			t.Errorf("desc[%d]: expected id %d, got %d", i, id, desc[i].ID)
		}
		if desc[i].Image != nil {
			t.Errorf("desc[%d]: image bytes should not be loaded in listings", i)
		}
	}
	if desc[0].Size != 3 {
		t.Errorf("expected listed size 3, got %d", desc[0].Size)
	}

	asc, err := ds.GetFiles(context.Background(), SortAscending)
	if err != nil {
		t.Fatalf("GetFiles(asc) error: %v", err)
	}
	wantAsc := []int64{older.ID, newer.ID, tie.ID}
	for i, id := range wantAsc {
		if asc[i].ID != id {
			t.Errorf("asc[%d]: expected id %d, got %d", i, id, asc[i].ID)
		}
	}
}

func TestSQLite_GetFiles_Empty(t *testing.T) {
	ds := newTestDB(t)

	files, err := ds.GetFiles(context.Background(), SortDescending)
	if err != nil {
		t.Fatalf("GetFiles error: %v", err)
	}
	if files == nil || len(files) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", files)
	}
}

func TestSQLite_GetFileByID(t *testing.T) {
	ds := newTestDB(t)
	created := insertTestFile(t, ds, "cat", []byte("payload"), time.Now())

	file, err := ds.GetFileByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetFileByID error: %v", err)
	}
	if file.Name != "cat" || file.Filename != "cat.png" {
		t.Errorf("unexpected metadata: %+v", file)
	}
	if !bytes.Equal(file.Image, []byte("payload")) {
		t.Errorf("Image mismatch: got %q", string(file.Image))
	}

	// Test non-existent ID
	_, err = ds.GetFileByID(context.Background(), created.ID+100)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLite_UpdateFile_NameOnly(t *testing.T) {
	ds := newTestDB(t)
	uploaded := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	created := insertTestFile(t, ds, "cat", []byte("payload"), uploaded)

	name := "kitty"
	modified := uploaded.Add(time.Second)
	updated, err := ds.UpdateFile(context.Background(), created.ID, FilePatch{Name: &name, ModifiedDate: modified})
	if err != nil {
		t.Fatalf("UpdateFile error: %v", err)
	}
	if updated.Name != "kitty" {
		t.Errorf("expected name kitty, got %q", updated.Name)
	}
	if updated.Filename != "cat.png" || !bytes.Equal(updated.Image, []byte("payload")) {
		t.Errorf("file content should be unchanged, got %q / %q", updated.Filename, string(updated.Image))
	}
	if !updated.UploadDate.Equal(uploaded) {
		t.Errorf("upload date changed: %v", updated.UploadDate)
	}
	if !updated.ModifiedDate.Equal(modified) {
		t.Errorf("expected modified date %v, got %v", modified, updated.ModifiedDate)
	}
}

func TestSQLite_UpdateFile_ContentOnly(t *testing.T) {
	ds := newTestDB(t)
	uploaded := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	created := insertTestFile(t, ds, "cat", []byte("payload"), uploaded)

	updated, err := ds.UpdateFile(context.Background(), created.ID, FilePatch{
		File:         &FileContent{Filename: "cat.jpg", Image: []byte("jpeg")},
		ModifiedDate: uploaded.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("UpdateFile error: %v", err)
	}
	if updated.Name != "cat" {
		t.Errorf("name should be unchanged, got %q", updated.Name)
	}
	if updated.Filename != "cat.jpg" || !bytes.Equal(updated.Image, []byte("jpeg")) {
		t.Errorf("unexpected content: %q / %q", updated.Filename, string(updated.Image))
	}
	if updated.Size != 4 {
		t.Errorf("expected size 4, got %d", updated.Size)
	}
}

func TestSQLite_UpdateFile_ModifiedNeverBeforeUpload(t *testing.T) {
	ds := newTestDB(t)
	uploaded := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	created := insertTestFile(t, ds, "cat", []byte("payload"), uploaded)

	name := "kitty"
	updated, err := ds.UpdateFile(context.Background(), created.ID, FilePatch{
		Name:         &name,
		ModifiedDate: uploaded.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("UpdateFile error: %v", err)
	}
	if updated.ModifiedDate.Before(updated.UploadDate) {
		t.Fatalf("modified date %v precedes upload date %v", updated.ModifiedDate, updated.UploadDate)
	}
}

func TestSQLite_UpdateFile_NotFound(t *testing.T) {
	ds := newTestDB(t)

	name := "ghost"
	_, err := ds.UpdateFile(context.Background(), 42, FilePatch{Name: &name, ModifiedDate: time.Now()})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLite_DeleteFile(t *testing.T) {
	ds := newTestDB(t)
	now := time.Now()

	first := insertTestFile(t, ds, "a", []byte("A"), now)
	second := insertTestFile(t, ds, "b", []byte("B"), now)

	if err := ds.DeleteFile(context.Background(), first.ID); err != nil {
		t.Fatalf("DeleteFile error: %v", err)
	}

	files, err := ds.GetFiles(context.Background(), SortDescending)
	if err != nil {
		t.Fatalf("GetFiles error: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file after deletion, got %d", len(files))
	}
	if files[0].ID != second.ID {
		t.Fatalf("expected remaining ID %d, got %d", second.ID, files[0].ID)
	}

	if err := ds.DeleteFile(context.Background(), first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestNewDatabase_UnsupportedType(t *testing.T) {
	_, err := NewDatabase(context.Background(), "mongodb", "whatever")
	if err == nil {
		t.Fatalf("expected error for unsupported database type")
	}
}

func TestNewDatabase_SQLite(t *testing.T) {
	ds, err := NewDatabase(context.Background(), TypeSQLite, ":memory:")
	if err != nil {
		t.Fatalf("NewDatabase error: %v", err)
	}
	t.Cleanup(func() { _ = ds.Close() })

	// schema must already exist
	if _, err := ds.GetFiles(context.Background(), SortDescending); err != nil {
		t.Fatalf("GetFiles on fresh database error: %v", err)
	}
}

func TestSQLite_ConcurrentUpdateAndDelete(t *testing.T) {
	ds := newTestDB(t)
	ctx := context.Background()
	uploaded := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 25; i++ {
		created := insertTestFile(t, ds, "cat", []byte("payload"), uploaded)

		var (
			wg        sync.WaitGroup
			updated   *FileRecord
			updateErr error
			deleteErr error
		)
		name := "kitty"
		wg.Add(2)
		go func() {
			defer wg.Done()
			updated, updateErr = ds.UpdateFile(ctx, created.ID, FilePatch{
				Name:         &name,
				File:         &FileContent{Filename: "kitty.jpg", Image: []byte("jpeg bytes")},
				ModifiedDate: uploaded.Add(time.Minute),
			})
		}()
		go func() {
			defer wg.Done()
			deleteErr = ds.DeleteFile(ctx, created.ID)
		}()
		wg.Wait()

		if deleteErr != nil {
			t.Fatalf("iteration %d: DeleteFile error: %v", i, deleteErr)
		}
		switch {
		case errors.Is(updateErr, ErrNotFound):
			// delete went first
		case updateErr != nil:
			t.Fatalf("iteration %d: UpdateFile error: %v", i, updateErr)
		default:
			if updated.Name != "kitty" || updated.Filename != "kitty.jpg" ||
				!bytes.Equal(updated.Image, []byte("jpeg bytes")) || updated.Size != int64(len("jpeg bytes")) {
				t.Fatalf("iteration %d: partial row returned: %+v", i, updated)
			}
		}

		if _, err := ds.GetFileByID(ctx, created.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("iteration %d: expected record to be gone, got %v", i, err)
		}
	}
}
