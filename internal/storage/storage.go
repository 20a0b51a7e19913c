// Package storage persists uploaded defect images and hands back the
// relative path recorded on the defect.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyFile       = errors.New("empty file")
)

// SizeError reports the limit an upload exceeded. It matches ErrFileTooLarge.
type SizeError struct {
	Limit int64
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("file too large: limit %d bytes", e.Limit)
}

func (e *SizeError) Is(target error) bool {
	return target == ErrFileTooLarge
}

type Upload struct {
	Filename string
	Data     []byte
}

type FileStore interface {
	Store(ctx context.Context, up Upload) (string, error)
	Delete(ctx context.Context, path string) error
}

var allowedImageTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
}

// checkUpload sniffs the content rather than trusting the client's
// Content-Type or file extension. It returns the extension to store under.
func checkUpload(up Upload, maxBytes int64) (string, string, error) {
	if len(up.Data) == 0 {
		return "", "", ErrEmptyFile
	}
	if maxBytes > 0 && int64(len(up.Data)) > maxBytes {
		return "", "", &SizeError{Limit: maxBytes}
	}

	mt := mimetype.Detect(up.Data)
	for _, allowed := range allowedImageTypes {
		if mt.Is(allowed) {
			return mt.Extension(), mt.String(), nil
		}
	}
	return "", "", ErrUnsupportedType
}
