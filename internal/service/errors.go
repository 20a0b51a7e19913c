package service

import (
	"errors"
	"fmt"

	"github.com/geocoder89/civicfix/internal/apperr"
	"github.com/geocoder89/civicfix/internal/domain/defect"
	"github.com/geocoder89/civicfix/internal/storage"
)

// translate maps store and domain errors onto the client facing taxonomy.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var ae *apperr.Error
	var se *storage.SizeError
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, defect.ErrNotFound):
		return apperr.NotFound("Defect not found")
	case defect.IsValidationError(err):
		return apperr.Validation(err.Error())
	case errors.As(err, &se):
		return apperr.Validation("Each image must be at most " + humanBytes(se.Limit))
	case errors.Is(err, storage.ErrFileTooLarge):
		return apperr.Validation("An image is too large")
	case errors.Is(err, storage.ErrUnsupportedType):
		return apperr.Validation("Only JPEG, PNG, GIF and WebP images are allowed")
	case errors.Is(err, storage.ErrEmptyFile):
		return apperr.Validation("Image files must not be empty")
	}
	return apperr.Internal(err)
}

func humanBytes(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%dMB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%dKB", n>>10)
	}
	return fmt.Sprintf("%d bytes", n)
}
