package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/civicfix/internal/domain/user"
	"github.com/geocoder89/civicfix/internal/http/middlewares"
	"github.com/geocoder89/civicfix/internal/identity"
	"github.com/geocoder89/civicfix/internal/service"
	"github.com/gin-gonic/gin"
)

type AccountService interface {
	Register(ctx context.Context, req user.RegisterRequest) (service.Session, error)
	Login(ctx context.Context, req user.LoginRequest) (service.Session, error)
	Profile(ctx context.Context, id identity.Identity) (user.Summary, error)
}

type AuthHandler struct {
	accounts AccountService
}

func NewAuthHandler(accounts AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	sess, err := h.accounts.Register(ctx.Request.Context(), req)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	RespondData(ctx, http.StatusCreated, sess)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	sess, err := h.accounts.Login(ctx.Request.Context(), req)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	RespondData(ctx, http.StatusOK, sess)
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	id, ok := middlewares.IdentityFrom(ctx)
	if !ok {
		RespondError(ctx, http.StatusUnauthorized, "unauthenticated", "Authentication required", nil)
		return
	}

	profile, err := h.accounts.Profile(ctx.Request.Context(), id)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	RespondData(ctx, http.StatusOK, profile)
}
