package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/josh-vincent/roast-me-characters-sub001/auth"
	"github.com/josh-vincent/roast-me-characters-sub001/models"
	"github.com/josh-vincent/roast-me-characters-sub001/storage"
)

// File is an uploaded photo as received from the client.
type File struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// Input is one request to create something from a photo. Exactly one of File
// and ImageURL must be set.
type Input struct {
	File     *File
	ImageURL string
	Identity auth.Identity
}

func validateInput(in Input) error {
	hasFile := in.File != nil
	hasURL := strings.TrimSpace(in.ImageURL) != ""

	switch {
	case !hasFile && !hasURL:
		return NewError(KindInvalidInput, "No image provided", nil)
	case hasFile && hasURL:
		return NewError(KindInvalidInput, "Provide either a file or an image URL, not both", nil)
	}

	if hasURL {
		u, err := url.Parse(strings.TrimSpace(in.ImageURL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return NewError(KindInvalidInput, "Image URL must be an absolute http(s) URL", err)
		}
	}

	if in.Identity.Empty() {
		return NewError(KindInvalidInput, "A user or anonymous id is required", nil)
	}
	return nil
}

// Ingest stores the photo (or records the remote URL) and inserts an
// ImageUpload in the processing state.
func (p *Pipeline) Ingest(ctx context.Context, in Input) (*models.ImageUpload, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	userID, anonID := ownerColumns(in.Identity)
	upload := &models.ImageUpload{
		UserID: userID,
		AnonID: anonID,
		Status: models.StatusProcessing,
	}

	if in.File != nil {
		data, contentType, err := readFile(in.File)
		if err != nil {
			return nil, err
		}

		key := storage.ObjectKey("uploads", in.Identity.Scope(), storage.Extension(in.File.Name, contentType))
		fileURL, err := p.store.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
		if err != nil {
			return nil, NewError(KindUploadFailed, "Failed to upload image", err)
		}

		upload.FileURL = fileURL
		upload.FileName = fileName(in.File.Name, key)
		upload.FileSize = int64(len(data))
		upload.MimeType = contentType
	} else {
		imageURL := strings.TrimSpace(in.ImageURL)
		upload.FileURL = imageURL
		upload.FileName = fileName(imageURL, "remote-image")
		upload.MimeType = storage.ContentTypeFromName(imageURL)
	}

	if err := p.db.WithContext(ctx).Create(upload).Error; err != nil {
		return nil, NewError(KindPersistenceFailed, "Failed to save image record", err)
	}
	return upload, nil
}

func readFile(f *File) ([]byte, string, error) {
	if f.Reader == nil {
		return nil, "", NewError(KindInvalidInput, "No image provided", nil)
	}

	data, err := io.ReadAll(io.LimitReader(f.Reader, MaxUploadSize+1))
	if err != nil {
		return nil, "", NewError(KindInvalidInput, "Could not read the uploaded file", err)
	}
	if len(data) == 0 {
		return nil, "", NewError(KindInvalidInput, "The uploaded file is empty", nil)
	}
	if len(data) > MaxUploadSize {
		return nil, "", NewError(KindInvalidInput, fmt.Sprintf("Image must be smaller than %d MB", MaxUploadSize>>20), nil)
	}

	contentType := sniffContentType(f.ContentType, data)
	if !storage.IsAllowedImageType(contentType) {
		return nil, "", NewError(KindInvalidInput, "Only PNG, JPEG, WebP and GIF images are supported", nil)
	}

	data, contentType, err = normalizeImage(data, contentType)
	if err != nil {
		return nil, "", NewError(KindInvalidInput, "The uploaded file is not a valid image", err)
	}
	return data, contentType, nil
}

func fileName(name, fallback string) string {
	if u, err := url.Parse(name); err == nil && u.Scheme != "" {
		name = u.Path
	}
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return path.Base(fallback)
	}
	return base
}

func ownerColumns(id auth.Identity) (userID, anonID *string) {
	if id.Verified() {
		v := id.UserID
		return &v, nil
	}
	if id.AnonID != "" {
		v := id.AnonID
		return nil, &v
	}
	return nil, nil
}
