package core

import (
	"mime"
	"path/filepath"
	"strings"
)

const (
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
)

// Upload is a decoded file field: the client's filename, the declared MIME type and the bytes.
type Upload struct {
	Filename string
	MimeType string
	Data     []byte
}

var allowedMimeTypes = map[string]bool{
	MimePNG:  true,
	MimeJPEG: true,
}

// ValidateUpload accepts PNG and JPEG uploads only.
func ValidateUpload(upload *Upload) error {
	if upload == nil || len(upload.Data) == 0 {
		return &ValidationError{Kind: MissingFile, Message: "No file uploaded"}
	}
	if strings.TrimSpace(upload.Filename) == "" {
		return &ValidationError{Kind: MissingFile, Message: "Uploaded file has no filename"}
	}
	if !allowedMimeTypes[normalizeMimeType(upload.MimeType)] {
		return &ValidationError{Kind: UnsupportedType, Message: "Only PNG and JPEG images are allowed"}
	}
	return nil
}

func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Kind: MissingName, Message: "Name is required"}
	}
	return nil
}

// ContentTypeForFilename trusts the stored extension: .png is served as PNG, everything else as JPEG.
func ContentTypeForFilename(filename string) string {
	if strings.EqualFold(filepath.Ext(filename), ".png") {
		return MimePNG
	}
	return MimeJPEG
}

func normalizeMimeType(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mediaType
}
