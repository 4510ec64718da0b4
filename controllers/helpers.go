package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/radiocms/media"
	"github.com/cppla/radiocms/middleware"
	"github.com/cppla/radiocms/models"
	"github.com/cppla/radiocms/utils"
)

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 10
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}

func pagination(page, pageSize int, total int64) gin.H {
	return gin.H{
		"page":        page,
		"page_size":   pageSize,
		"total":       total,
		"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
	}
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok && id != 0
}

// getPrincipal aborts with 401 when the auth middleware did not run.
func getPrincipal(ctx *gin.Context) (models.Principal, bool) {
	p, ok := middleware.GetPrincipal(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
	}
	return p, ok
}

// parseID reads a positive numeric path parameter, answering 400 otherwise.
func parseID(ctx *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(ctx.Param(name)), 10, 64)
	if err != nil || n == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40041, "invalid "+name)
		return 0, false
	}
	return uint(n), true
}

// parseOptionalID reads an optional numeric id from a form or query value.
// Empty means zero.
func parseOptionalID(raw string) (uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(n), nil
}

// respondMediaError maps pipeline errors onto the response envelope.
func respondMediaError(ctx *gin.Context, err error) {
	var upstream *media.UpstreamError
	switch {
	case errors.As(err, &upstream):
		msg := upstream.Service + " failed"
		if upstream.StatusCode != 0 {
			msg = upstream.Service + " responded " + strconv.Itoa(upstream.StatusCode)
		}
		utils.Respond(ctx, http.StatusBadGateway, 50201, msg, gin.H{"ok": false, "detail": upstream.Detail})
	case errors.Is(err, media.ErrTooLarge):
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41340, err.Error())
	case errors.Is(err, media.ErrUnsupportedType):
		utils.Error(ctx, http.StatusUnsupportedMediaType, 41540, err.Error())
	case errors.Is(err, media.ErrValidation):
		utils.Error(ctx, http.StatusBadRequest, 40040, err.Error())
	case errors.Is(err, media.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40440, err.Error())
	case errors.Is(err, media.ErrForbidden):
		utils.Error(ctx, http.StatusForbidden, 40340, err.Error())
	case errors.Is(err, media.ErrConflict):
		utils.Error(ctx, http.StatusConflict, 40940, err.Error())
	default:
		utils.Sugar.Errorf("media request %s %s failed: %v", ctx.Request.Method, ctx.FullPath(), err)
		utils.Error(ctx, http.StatusInternalServerError, 50040, "internal error")
	}
}
