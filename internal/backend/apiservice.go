package backend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jo-hoe/goimagestore/internal/backend/database"
	"github.com/jo-hoe/goimagestore/internal/common"
	"github.com/jo-hoe/goimagestore/internal/core"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	filesRoute   = "/api/files"
	imageField   = "image"
	nameField    = "name"
	probeTimeout = 3 * time.Second
)

type APIService struct {
	coreService *core.CoreService
	config      *core.ServiceConfig
	rateLimiter *RateLimiter
}

// FileResponse is the JSON shape of a record. Image bytes are only served by the image route.
type FileResponse struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Filename     string    `json:"filename"`
	Size         int64     `json:"size"`
	UploadDate   time.Time `json:"upload_date"`
	ModifiedDate time.Time `json:"modified_date"`
}

type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type createFileForm struct {
	Name string `form:"name" validate:"required"`
}

// NewAPIService wires the HTTP layer. rateLimiter may be nil to disable limiting.
func NewAPIService(config *core.ServiceConfig, coreService *core.CoreService, rateLimiter *RateLimiter) *APIService {
	return &APIService{
		coreService: coreService,
		config:      config,
		rateLimiter: rateLimiter,
	}
}

func (service *APIService) SetRoutes(e *echo.Echo) {
	e.HTTPErrorHandler = service.errorHandler
	if e.Validator == nil {
		e.Validator = &common.GenericEchoValidator{}
	}
	e.Pre(Metrics())

	// Set probe route
	e.GET("/probe", service.probeHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	files := e.Group(filesRoute, middleware.BodyLimit(service.config.Upload.MaxSize))

	mutating := []echo.MiddlewareFunc{}
	if service.rateLimiter != nil {
		mutating = append(mutating, service.rateLimiter.Middleware())
	}

	files.POST("", service.createFileHandler, mutating...)
	files.GET("", service.listFilesHandler)
	files.GET("/image/:id", service.getImageHandler)
	files.PUT("/:id", service.updateFileHandler, mutating...)
	files.DELETE("/:id", service.deleteFileHandler, mutating...)
}

func (service *APIService) createFileHandler(ctx echo.Context) error {
	upload, err := decodeUpload(ctx, imageField)
	if err != nil {
		return err
	}
	// file presence and type are reported before the name
	if err := core.ValidateUpload(upload); err != nil {
		return err
	}

	var form createFileForm
	if err := ctx.Bind(&form); err != nil {
		return err
	}
	if err := ctx.Validate(&form); err != nil {
		return &core.ValidationError{Kind: core.MissingName, Message: "Name is required"}
	}

	created, err := service.coreService.CreateFile(ctx.Request().Context(), form.Name, upload)
	if err != nil {
		return err
	}

	slog.Info("createFileHandler: file uploaded", "id", created.ID, "filename", created.Filename, "size", created.Size)
	return ctx.JSON(http.StatusCreated, toFileResponse(created))
}

func (service *APIService) listFilesHandler(ctx echo.Context) error {
	files, err := service.coreService.ListFiles(ctx.Request().Context())
	if err != nil {
		return err
	}

	response := make([]FileResponse, 0, len(files))
	for _, file := range files {
		response = append(response, toFileResponse(file))
	}
	return ctx.JSON(http.StatusOK, response)
}

func (service *APIService) getImageHandler(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return err
	}

	image, err := service.coreService.GetImage(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.Blob(http.StatusOK, image.ContentType, image.Data)
}

func (service *APIService) updateFileHandler(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return err
	}

	var request core.UpdateRequest
	request.Upload, err = decodeUpload(ctx, imageField)
	if err != nil {
		return err
	}
	name, present, err := formValue(ctx, nameField)
	if err != nil {
		return err
	}
	if present {
		request.Name = &name
	}

	updated, err := service.coreService.UpdateFile(ctx.Request().Context(), id, request)
	if err != nil {
		return err
	}

	slog.Info("updateFileHandler: file updated", "id", updated.ID, "name_changed", present, "image_changed", request.Upload != nil)
	return ctx.JSON(http.StatusOK, toFileResponse(updated))
}

func (service *APIService) deleteFileHandler(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return err
	}

	deleted, err := service.coreService.DeleteFile(ctx.Request().Context(), id)
	if err != nil {
		return err
	}

	slog.Info("deleteFileHandler: file deleted", "id", id)
	return ctx.JSON(http.StatusOK, DeleteResponse{Deleted: deleted})
}

func (service *APIService) probeHandler(ctx echo.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx.Request().Context(), probeTimeout)
	defer cancel()

	if !service.coreService.Ready(probeCtx) {
		slog.Warn("probeHandler: database not reachable", "status", http.StatusServiceUnavailable)
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// errorHandler renders every error as {"error": "..."} with the matching status.
func (service *APIService) errorHandler(err error, ctx echo.Context) {
	if ctx.Response().Committed {
		return
	}

	status, message := statusForError(err)
	if status >= http.StatusInternalServerError {
		slog.Error("errorHandler: request failed",
			"status", status, "method", ctx.Request().Method, "path", ctx.Path(), "error", err)
	} else {
		slog.Warn("errorHandler: request rejected",
			"status", status, "method", ctx.Request().Method, "path", ctx.Path(), "error", err)
	}

	if ctx.Request().Method == http.MethodHead {
		err = ctx.NoContent(status)
	} else {
		err = ctx.JSON(status, ErrorResponse{Error: message})
	}
	if err != nil {
		slog.Error("errorHandler: failed to write error response", "error", err)
	}
}

func statusForError(err error) (int, string) {
	var (
		validationErr *core.ValidationError
		notFoundErr   *core.NotFoundError
		storeErr      *core.StoreError
		httpErr       *echo.HTTPError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, validationErr.Message
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, "File not found"
	case errors.As(err, &storeErr):
		return http.StatusInternalServerError, "Storage error"
	case errors.As(err, &httpErr):
		if message, ok := httpErr.Message.(string); ok {
			return httpErr.Code, message
		}
		return httpErr.Code, http.StatusText(httpErr.Code)
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// parseID maps ids that cannot exist (non-numeric, non-positive) to not found.
func parseID(ctx echo.Context) (int64, error) {
	raw := ctx.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &core.NotFoundError{ID: raw}
	}
	return id, nil
}

func toFileResponse(file *database.FileRecord) FileResponse {
	return FileResponse{
		ID:           file.ID,
		Name:         file.Name,
		Filename:     file.Filename,
		Size:         file.Size,
		UploadDate:   file.UploadDate,
		ModifiedDate: file.ModifiedDate,
	}
}
