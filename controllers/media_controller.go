package controllers

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/radiocms/media"
	"github.com/cppla/radiocms/models"
	"github.com/cppla/radiocms/utils"
)

// MediaController exposes the ads, music and voice libraries.
type MediaController struct {
	svc *media.Service
}

// NewMediaController creates a MediaController.
func NewMediaController(svc *media.Service) *MediaController {
	return &MediaController{svc: svc}
}

func (m *MediaController) collection(ctx *gin.Context) (models.Collection, bool) {
	c, err := media.ParseCollection(ctx.Param("collection"))
	if err != nil {
		utils.Error(ctx, http.StatusNotFound, 40441, err.Error())
		return "", false
	}
	return c, true
}

// List returns the caller's items (all items for administrators), newest first.
func (m *MediaController) List(ctx *gin.Context) {
	p, ok := getPrincipal(ctx)
	if !ok {
		return
	}
	c, ok := m.collection(ctx)
	if !ok {
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	items, total, err := m.svc.List(ctx.Request.Context(), p, c, page, pageSize)
	if err != nil {
		respondMediaError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": items, "pagination": pagination(page, pageSize, total)})
}

// Upload stores a batch of MP3 files. Form fields: files (repeated), names[]
// (per-file titles, same order), name (shared title prefix), userId.
func (m *MediaController) Upload(ctx *gin.Context) {
	p, ok := getPrincipal(ctx)
	if !ok {
		return
	}
	c, ok := m.collection(ctx)
	if !ok {
		return
	}
	if !strings.HasPrefix(strings.ToLower(ctx.ContentType()), "multipart/form-data") {
		utils.Error(ctx, http.StatusUnsupportedMediaType, 41541, "content type must be multipart/form-data")
		return
	}
	form, err := ctx.MultipartForm()
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40042, "invalid multipart form")
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40043, "no files received")
		return
	}
	owner, err := parseOptionalID(firstValue(form, "userId"))
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40044, "invalid userId")
		return
	}
	names := form.Value["names[]"]
	if len(names) == 0 {
		names = form.Value["names"]
	}

	results, err := m.svc.UploadBatch(ctx.Request.Context(), p, c, owner, firstValue(form, "name"), uploadsFrom(files, names))
	if err != nil {
		respondMediaError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"ok": true, "count": len(results), "results": results})
}

// SetStatus sets the status to one of DRAFT, READY, ARCHIVED, PROCESSING, FAILED.
func (m *MediaController) SetStatus(ctx *gin.Context) {
	p, ok := getPrincipal(ctx)
	if !ok {
		return
	}
	c, ok := m.collection(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40045, "status is required")
		return
	}
	item, err := m.svc.SetStatus(ctx.Request.Context(), p, c, id, req.Status)
	if err != nil {
		respondMediaError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"id": item.ID, "status": item.Status})
}

// ToggleArchive archives a live item or restores an archived one.
func (m *MediaController) ToggleArchive(ctx *gin.Context) {
	p, ok := getPrincipal(ctx)
	if !ok {
		return
	}
	c, ok := m.collection(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	item, err := m.svc.ToggleArchive(ctx.Request.Context(), p, c, id)
	if err != nil {
		respondMediaError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"id": item.ID, "status": item.Status})
}

// Delete removes an item and, best effort, its file.
func (m *MediaController) Delete(ctx *gin.Context) {
	p, ok := getPrincipal(ctx)
	if !ok {
		return
	}
	c, ok := m.collection(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	if err := m.svc.Delete(ctx.Request.Context(), p, c, id); err != nil {
		respondMediaError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"ok": true, "id": id})
}

// Transmit sends a READY item to the streaming service.
func (m *MediaController) Transmit(ctx *gin.Context) {
	p, ok := getPrincipal(ctx)
	if !ok {
		return
	}
	c, ok := m.collection(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	item, url, err := m.svc.Transmit(ctx.Request.Context(), p, c, id)
	if err != nil {
		respondMediaError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"ok": true, "url": url, "item": item})
}

// Ingest stores one recording, converting it to MP3 when needed. Form fields:
// file, name, userId, collection (defaults to voice).
func (m *MediaController) Ingest(ctx *gin.Context) {
	p, ok := getPrincipal(ctx)
	if !ok {
		return
	}
	raw := ctx.DefaultPostForm("collection", string(models.CollectionVoice))
	c, err := media.ParseCollection(raw)
	if err != nil {
		respondMediaError(ctx, err)
		return
	}
	fh, err := ctx.FormFile("file")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40046, "no file")
		return
	}
	owner, err := parseOptionalID(ctx.PostForm("userId"))
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40044, "invalid userId")
		return
	}
	up := uploadsFrom([]*multipart.FileHeader{fh}, []string{ctx.PostForm("name")})[0]

	item, err := m.svc.Ingest(ctx.Request.Context(), p, c, owner, up)
	if err != nil {
		respondMediaError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"item": item})
}

// Broadcast forwards an arbitrary audio URL. Body: {"audioUrl": "..."}.
func (m *MediaController) Broadcast(ctx *gin.Context) {
	p, ok := getPrincipal(ctx)
	if !ok {
		return
	}
	var req struct {
		AudioURL string `json:"audioUrl"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.AudioURL) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40047, "audioUrl is required")
		return
	}
	url, err := m.svc.BroadcastURL(ctx.Request.Context(), p, req.AudioURL)
	if err != nil {
		respondMediaError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"ok": true, "url": url})
}

// Playlist exports READY items as extended M3U. Query: userId, shuffle, limit.
func (m *MediaController) Playlist(ctx *gin.Context) {
	c, ok := m.collection(ctx)
	if !ok {
		return
	}
	m.writePlaylist(ctx, c)
}

// MusicPlaylist serves the music playlist at its historical path.
func (m *MediaController) MusicPlaylist(ctx *gin.Context) {
	m.writePlaylist(ctx, models.CollectionMusic)
}

func (m *MediaController) writePlaylist(ctx *gin.Context, c models.Collection) {
	owner, err := parseOptionalID(ctx.Query("userId"))
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40044, "invalid userId")
		return
	}
	shuffle := strings.EqualFold(ctx.Query("shuffle"), "true") || ctx.Query("shuffle") == "1"
	limit := media.ClampLimit(ctx.Query("limit"))

	tracks, err := m.svc.Playlist(ctx.Request.Context(), c, owner, limit, shuffle)
	if err != nil {
		respondMediaError(ctx, err)
		return
	}
	ctx.Header("Cache-Control", "no-store")
	ctx.Data(http.StatusOK, media.M3UContentType, []byte(media.BuildM3U(tracks)))
}

func uploadsFrom(files []*multipart.FileHeader, names []string) []media.Upload {
	uploads := make([]media.Upload, 0, len(files))
	for i, fh := range files {
		fh := fh
		up := media.Upload{
			Filename:     fh.Filename,
			DeclaredType: fh.Header.Get("Content-Type"),
			Open:         func() (io.ReadCloser, error) { return fh.Open() },
		}
		if i < len(names) {
			up.Title = names[i]
		}
		uploads = append(uploads, up)
	}
	return uploads
}

func firstValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}
