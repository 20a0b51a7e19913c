package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/geocoder89/civicfix/internal/domain/defect"
	"github.com/geocoder89/civicfix/internal/http/middlewares"
	"github.com/geocoder89/civicfix/internal/identity"
	"github.com/geocoder89/civicfix/internal/service"
	"github.com/geocoder89/civicfix/internal/storage"
	"github.com/geocoder89/civicfix/internal/utils"
	"github.com/gin-gonic/gin"
)

type DefectService interface {
	Create(ctx context.Context, id identity.Identity, in defect.CreateInput, uploads []storage.Upload) (defect.Defect, error)
	List(ctx context.Context, id identity.Identity, q defect.ListQuery) (defect.Page, error)
	Get(ctx context.Context, id identity.Identity, defectID string) (defect.Defect, error)
	Update(ctx context.Context, id identity.Identity, defectID string, in defect.UpdateInput) (defect.Defect, error)
	SetStatus(ctx context.Context, id identity.Identity, defectID, status string) (defect.Defect, error)
	Delete(ctx context.Context, id identity.Identity, defectID string) error
	AddComment(ctx context.Context, id identity.Identity, defectID, message string) (defect.Defect, error)
	MarkRead(ctx context.Context, id identity.Identity, defectID string) (defect.Defect, error)
	Unread(ctx context.Context, id identity.Identity) (defect.UnreadSummary, error)
	Suggestions(ctx context.Context, id identity.Identity, q string) ([]string, error)
}

type DefectsHandler struct {
	defects   DefectService
	maxImages int
}

func NewDefectsHandler(defects DefectService) *DefectsHandler {
	return &DefectsHandler{defects: defects}
}

// WithMaxImages rejects a create carrying more than n files before any of
// them is read. The service enforces the same limit.
func (h *DefectsHandler) WithMaxImages(n int) *DefectsHandler {
	h.maxImages = n
	return h
}

type statusRequest struct {
	Status string `json:"status"`
}

type commentRequest struct {
	Message string `json:"message" binding:"max=2000"`
}

// image form field names accepted on create
var imageFields = []string{"images", "images[]"}

// caller resolves the identity placed on the request by the auth middleware.
func caller(ctx *gin.Context) (identity.Identity, bool) {
	id, ok := middlewares.IdentityFrom(ctx)
	if !ok {
		RespondError(ctx, http.StatusUnauthorized, "unauthenticated", "Authentication required", nil)
		return identity.Identity{}, false
	}
	return id, true
}

func defectIDParam(ctx *gin.Context) (string, bool) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "defect id must be a valid UUID", nil)
		return "", false
	}
	ctx.Set(middlewares.CtxDefectID, id)
	return id, true
}

func (h *DefectsHandler) Create(ctx *gin.Context) {
	id, ok := caller(ctx)
	if !ok {
		return
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondError(ctx, http.StatusRequestEntityTooLarge, "request_too_large", "Request body too large", nil)
			return
		}
		RespondBadRequest(ctx, "Expected a multipart form", nil)
		return
	}

	in, err := createInputFromForm(form)
	if err != nil {
		RespondBadRequest(ctx, err.Error(), nil)
		return
	}

	if h.maxImages > 0 && countImages(form) > h.maxImages {
		RespondBadRequest(ctx, fmt.Sprintf("At most %d images are allowed", h.maxImages), nil)
		return
	}

	uploads, err := uploadsFromForm(form)
	if err != nil {
		RespondBadRequest(ctx, "Could not read uploaded images", nil)
		return
	}

	d, err := h.defects.Create(ctx.Request.Context(), id, in, uploads)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.Set(middlewares.CtxDefectID, d.ID)
	RespondData(ctx, http.StatusCreated, d)
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func createInputFromForm(form *multipart.Form) (defect.CreateInput, error) {
	loc := defect.ParseLocationField(formValue(form, "location"))

	for _, coord := range []struct {
		key string
		dst **float64
	}{
		{"latitude", &loc.Latitude},
		{"longitude", &loc.Longitude},
	} {
		raw := strings.TrimSpace(formValue(form, coord.key))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return defect.CreateInput{}, errors.New(coord.key + " must be a number")
		}
		*coord.dst = &v
	}

	return defect.CreateInput{
		Title:       formValue(form, "title"),
		Description: formValue(form, "description"),
		Type:        formValue(form, "type"),
		Location:    loc,
	}, nil
}

func countImages(form *multipart.Form) int {
	n := 0
	for _, field := range imageFields {
		n += len(form.File[field])
	}
	return n
}

func uploadsFromForm(form *multipart.Form) ([]storage.Upload, error) {
	var out []storage.Upload

	for _, field := range imageFields {
		for _, fh := range form.File[field] {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return nil, err
			}
			out = append(out, storage.Upload{Filename: fh.Filename, Data: data})
		}
	}

	return out, nil
}

func (h *DefectsHandler) List(ctx *gin.Context) {
	id, ok := caller(ctx)
	if !ok {
		return
	}

	q := defect.ListQuery{
		Page:   utils.QueryInt(ctx.Query("page"), 1),
		Limit:  utils.QueryInt(ctx.Query("limit"), service.DefaultPageSize),
		Search: ctx.Query("search"),
	}

	page, err := h.defects.List(ctx.Request.Context(), id, q)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	RespondDataWithETag(ctx, page.Items, gin.H{
		"page":       page.Page,
		"limit":      page.Limit,
		"totalPages": page.TotalPages,
		"totalItems": page.TotalItems,
	})
}

func (h *DefectsHandler) Get(ctx *gin.Context) {
	id, ok := caller(ctx)
	if !ok {
		return
	}
	defectID, ok := defectIDParam(ctx)
	if !ok {
		return
	}

	d, err := h.defects.Get(ctx.Request.Context(), id, defectID)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	RespondDataWithETag(ctx, d, nil)
}

func (h *DefectsHandler) Update(ctx *gin.Context) {
	id, ok := caller(ctx)
	if !ok {
		return
	}
	defectID, ok := defectIDParam(ctx)
	if !ok {
		return
	}

	var req defect.UpdateInput
	if !BindJSON(ctx, &req) {
		return
	}

	d, err := h.defects.Update(ctx.Request.Context(), id, defectID, req)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	RespondData(ctx, http.StatusOK, d)
}

func (h *DefectsHandler) SetStatus(ctx *gin.Context) {
	id, ok := caller(ctx)
	if !ok {
		return
	}
	defectID, ok := defectIDParam(ctx)
	if !ok {
		return
	}

	var req statusRequest
	if !BindJSON(ctx, &req) {
		return
	}

	d, err := h.defects.SetStatus(ctx.Request.Context(), id, defectID, req.Status)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	RespondData(ctx, http.StatusOK, d)
}

func (h *DefectsHandler) Delete(ctx *gin.Context) {
	id, ok := caller(ctx)
	if !ok {
		return
	}
	defectID, ok := defectIDParam(ctx)
	if !ok {
		return
	}

	if err := h.defects.Delete(ctx.Request.Context(), id, defectID); err != nil {
		RespondAppError(ctx, err)
		return
	}

	RespondMessage(ctx, http.StatusOK, "Defect deleted")
}

func (h *DefectsHandler) AddComment(ctx *gin.Context) {
	id, ok := caller(ctx)
	if !ok {
		return
	}
	defectID, ok := defectIDParam(ctx)
	if !ok {
		return
	}

	var req commentRequest
	if !BindJSON(ctx, &req) {
		return
	}

	d, err := h.defects.AddComment(ctx.Request.Context(), id, defectID, req.Message)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	RespondData(ctx, http.StatusCreated, d)
}

func (h *DefectsHandler) MarkRead(ctx *gin.Context) {
	id, ok := caller(ctx)
	if !ok {
		return
	}
	defectID, ok := defectIDParam(ctx)
	if !ok {
		return
	}

	d, err := h.defects.MarkRead(ctx.Request.Context(), id, defectID)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	RespondData(ctx, http.StatusOK, d)
}

func (h *DefectsHandler) Unread(ctx *gin.Context) {
	id, ok := caller(ctx)
	if !ok {
		return
	}

	sum, err := h.defects.Unread(ctx.Request.Context(), id)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	RespondDataWithETag(ctx, sum, nil)
}

func (h *DefectsHandler) Suggestions(ctx *gin.Context) {
	id, ok := caller(ctx)
	if !ok {
		return
	}

	vals, err := h.defects.Suggestions(ctx.Request.Context(), id, ctx.Query("q"))
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	RespondData(ctx, http.StatusOK, vals)
}
