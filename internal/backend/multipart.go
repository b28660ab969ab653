package backend

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jo-hoe/goimagestore/internal/core"
	"github.com/labstack/echo/v4"
)

// decodeUpload reads a multipart file field fully into memory.
// It returns nil without error when the request carries no such field.
func decodeUpload(ctx echo.Context, field string) (*core.Upload, error) {
	file, err := ctx.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, asRequestError(err)
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file %s: %w", file.Filename, err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("decodeUpload: failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()

	// Read file content reliably
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file %s: %w", file.Filename, err)
	}

	return &core.Upload{
		Filename: file.Filename,
		MimeType: file.Header.Get(echo.HeaderContentType),
		Data:     data,
	}, nil
}

// formValue reports whether the form field was sent at all, so an absent
// field can be told apart from an empty one.
func formValue(ctx echo.Context, field string) (string, bool, error) {
	if _, err := ctx.FormParams(); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return "", false, nil
		}
		return "", false, asRequestError(err)
	}

	values, ok := ctx.Request().PostForm[field]
	if !ok || len(values) == 0 {
		return "", false, nil
	}
	return values[0], true, nil
}

// asRequestError keeps echo errors (e.g. 413 from the body limit) and turns
// anything else from multipart parsing into a 400.
func asRequestError(err error) error {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return echo.NewHTTPError(http.StatusBadRequest, "Malformed multipart request").SetInternal(err)
}
