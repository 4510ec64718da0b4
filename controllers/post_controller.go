package controllers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/cppla/radiocms/media"
	"github.com/cppla/radiocms/models"
	"github.com/cppla/radiocms/utils"
)

const (
	postListCachePrefix = "cache:posts:list:"
	publicPageSize      = 8
	imagesDir           = "uploads"
	maxImagesPerRequest = 10
)

// reservedSlugs cannot be used by posts because they clash with editor routes.
var reservedSlugs = map[string]bool{"new": true}

var errSlugTaken = errors.New("slug already in use")

// invalidatePostList drops every cached public list page.
var invalidatePostList = func() { utils.InvalidateByPrefix(postListCachePrefix) }

// publicAuthor is the part of a user shown on public pages.
type publicAuthor struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// publicPost shadows Post.User so contact details and roles stay private.
type publicPost struct {
	models.Post
	User *publicAuthor `json:"author,omitempty"`
}

func toPublic(post models.Post) publicPost {
	out := publicPost{Post: post}
	if post.User != nil {
		out.User = &publicAuthor{ID: post.User.ID, Name: post.User.Name, Image: post.User.Image}
	}
	out.Post.User = nil
	return out
}

// PostController manages the news CMS.
type PostController struct {
	db      *gorm.DB
	storage media.Storage
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB, storage media.Storage) *PostController {
	return &PostController{db: db, storage: storage}
}

type postRequest struct {
	Title   string   `json:"title" binding:"required"`
	Content string   `json:"content" binding:"required"`
	Slug    string   `json:"slug"`
	Images  []string `json:"images"`
}

// ListPublished returns published posts, newest first, eight per page.
func (p *PostController) ListPublished(ctx *gin.Context) {
	page, _ := parsePagination(ctx.Query("page"), "")
	cacheKey := fmt.Sprintf("%spage=%d", postListCachePrefix, page)
	var cached map[string]interface{}
	if utils.CacheGetJSON(cacheKey, &cached) {
		utils.Success(ctx, cached)
		return
	}

	var posts []models.Post
	var total int64
	q := p.db.Model(&models.Post{}).Where("published = ?", true)
	if err := q.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to count posts")
		return
	}
	if err := q.Preload("User").Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * publicPageSize).Limit(publicPageSize).Find(&posts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to list posts")
		return
	}

	items := make([]publicPost, 0, len(posts))
	for _, post := range posts {
		items = append(items, toPublic(post))
	}
	payload := gin.H{"items": items, "pagination": pagination(page, publicPageSize, total)}
	utils.CacheSetJSON(cacheKey, payload, 5*time.Minute)
	utils.Success(ctx, payload)
}

// GetBySlug returns a published post with its author.
func (p *PostController) GetBySlug(ctx *gin.Context) {
	var post models.Post
	err := p.db.Preload("User").Where("slug = ? AND published = ?", ctx.Param("slug"), true).First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load post")
		return
	}
	utils.Success(ctx, gin.H{"post": toPublic(post)})
}

// NextBySlug returns the slug of the published post following the given one,
// or null at the end of the list.
func (p *PostController) NextBySlug(ctx *gin.Context) {
	var current models.Post
	if err := p.db.Select("id").Where("slug = ?", ctx.Param("slug")).First(&current).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load post")
		return
	}

	var next models.Post
	err := p.db.Select("id", "slug").Where("id > ? AND published = ?", current.ID, true).Order("id ASC").First(&next).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Success(ctx, gin.H{"slug": nil})
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to load next post")
		return
	}
	utils.Success(ctx, gin.H{"slug": next.Slug})
}

// SlugAvailable reports whether a slug is free after normalization.
func (p *PostController) SlugAvailable(ctx *gin.Context) {
	slug := utils.Slugify(ctx.Query("slug"))
	if slug == "" {
		utils.Error(ctx, http.StatusBadRequest, 40020, "slug is required")
		return
	}
	available, err := p.slugAvailable(slug)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to check slug")
		return
	}
	utils.Success(ctx, gin.H{"slug": slug, "available": available})
}

func (p *PostController) slugAvailable(slug string) (bool, error) {
	if reservedSlugs[slug] {
		return false, nil
	}
	var n int64
	if err := p.db.Model(&models.Post{}).Where("slug = ?", slug).Count(&n).Error; err != nil {
		return false, err
	}
	return n == 0, nil
}

// insertPost creates post, reporting errSlugTaken when a concurrent writer
// claimed the slug after the availability check.
func insertPost(db *gorm.DB, post *models.Post) error {
	err := db.Create(post).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errSlugTaken
	}
	var n int64
	if cerr := db.Model(&models.Post{}).Where("slug = ?", post.Slug).Count(&n).Error; cerr == nil && n > 0 {
		return errSlugTaken
	}
	return err
}

// AdminList lists posts for the editor. Publishers only see their own.
func (p *PostController) AdminList(ctx *gin.Context) {
	pr, ok := getPrincipal(ctx)
	if !ok {
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	var posts []models.Post
	var total int64
	q := p.db.Model(&models.Post{})
	if !pr.IsAdmin() {
		q = q.Where("user_id = ?", pr.UserID)
	}
	if err := q.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to count posts")
		return
	}
	if err := q.Preload("User").Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&posts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to list posts")
		return
	}
	utils.Success(ctx, gin.H{"items": posts, "pagination": pagination(page, pageSize, total)})
}

// AdminGet loads any post the caller may edit, published or not.
func (p *PostController) AdminGet(ctx *gin.Context) {
	post, ok := p.loadEditable(ctx)
	if !ok {
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// Create stores a new draft. The slug defaults to the slugified title.
func (p *PostController) Create(ctx *gin.Context) {
	pr, ok := getPrincipal(ctx)
	if !ok {
		return
	}
	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "title and content are required")
		return
	}
	title := utils.SanitizeText(req.Title)
	content := utils.Sanitize(req.Content)
	if title == "" || strings.TrimSpace(content) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "title and content cannot be empty")
		return
	}
	slug := utils.Slugify(req.Slug)
	if slug == "" {
		slug = utils.Slugify(title)
	}
	if slug == "" {
		utils.Error(ctx, http.StatusBadRequest, 40022, "slug cannot be empty")
		return
	}
	available, err := p.slugAvailable(slug)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to check slug")
		return
	}
	if !available {
		utils.Error(ctx, http.StatusConflict, 40901, "slug already in use")
		return
	}

	post := models.Post{
		UserID:  pr.UserID,
		Title:   title,
		Content: content,
		Images:  cleanImages(req.Images),
		Slug:    slug,
	}
	if err := insertPost(p.db, &post); err != nil {
		if errors.Is(err, errSlugTaken) {
			utils.Error(ctx, http.StatusConflict, 40901, "slug already in use")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create post")
		return
	}
	invalidatePostList()
	utils.Success(ctx, gin.H{"post": post})
}

// Update replaces title, content and images. The slug never changes.
func (p *PostController) Update(ctx *gin.Context) {
	post, ok := p.loadEditable(ctx)
	if !ok {
		return
	}
	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40024, "title and content are required")
		return
	}
	title := utils.SanitizeText(req.Title)
	content := utils.Sanitize(req.Content)
	if title == "" || strings.TrimSpace(content) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40025, "title and content cannot be empty")
		return
	}

	post.Title = title
	post.Content = content
	post.Images = cleanImages(req.Images)
	if err := p.db.Model(post).Select("title", "content", "images").Updates(post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50026, "failed to update post")
		return
	}
	invalidatePostList()
	utils.Success(ctx, gin.H{"post": post})
}

// Delete removes a post.
func (p *PostController) Delete(ctx *gin.Context) {
	post, ok := p.loadEditable(ctx)
	if !ok {
		return
	}
	if err := p.db.Delete(post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50028, "failed to delete post")
		return
	}
	invalidatePostList()
	utils.Success(ctx, gin.H{"message": "post deleted"})
}

// SetPublished publishes or unpublishes a post. Body: {"published": bool}.
func (p *PostController) SetPublished(ctx *gin.Context) {
	post, ok := p.loadEditable(ctx)
	if !ok {
		return
	}
	var req struct {
		Published *bool `json:"published" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40026, "published is required")
		return
	}
	if err := p.db.Model(post).Update("published", *req.Published).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50029, "failed to update post")
		return
	}
	post.Published = *req.Published
	invalidatePostList()
	utils.Success(ctx, gin.H{"id": post.ID, "published": post.Published})
}

// ToggleReady flips the editorial ready flag.
func (p *PostController) ToggleReady(ctx *gin.Context) {
	post, ok := p.loadEditable(ctx)
	if !ok {
		return
	}
	next := !post.IsReady
	if err := p.db.Model(post).Update("is_ready", next).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50029, "failed to update post")
		return
	}
	post.IsReady = next
	invalidatePostList()
	utils.Success(ctx, gin.H{"id": post.ID, "is_ready": post.IsReady})
}

// UploadImages stores one or more images sent as repeated "file" parts and
// returns their public URLs in order.
func (p *PostController) UploadImages(ctx *gin.Context) {
	form, err := ctx.MultipartForm()
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid multipart form")
		return
	}
	files := form.File["file"]
	if len(files) == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40031, "no file uploaded")
		return
	}
	if len(files) > maxImagesPerRequest {
		utils.Error(ctx, http.StatusBadRequest, 40032, fmt.Sprintf("at most %d images per request", maxImagesPerRequest))
		return
	}

	urls := make([]string, 0, len(files))
	for _, fh := range files {
		url, status, code, err := p.storeImage(fh)
		if err != nil {
			for _, u := range urls {
				_ = p.storage.Remove(p.absFromURL(u))
			}
			utils.Error(ctx, status, code, err.Error())
			return
		}
		urls = append(urls, url)
	}
	utils.Success(ctx, gin.H{"urls": urls})
}

func (p *PostController) storeImage(fh *multipart.FileHeader) (string, int, int, error) {
	f, err := fh.Open()
	if err != nil {
		return "", http.StatusBadRequest, 40033, fmt.Errorf("cannot read %s", fh.Filename)
	}
	defer f.Close()

	head := make([]byte, media.SniffLen)
	n, _ := io.ReadFull(f, head)
	_, ext, ok := media.SniffImage(head[:n])
	if !ok {
		return "", http.StatusUnsupportedMediaType, 41530, fmt.Errorf("%s is not an image", fh.Filename)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", http.StatusInternalServerError, 50030, errors.New("failed to read image")
	}
	st, err := p.storage.WriteUUID(imagesDir, ext, f)
	if err != nil {
		if errors.Is(err, media.ErrTooLarge) {
			return "", http.StatusRequestEntityTooLarge, 41330, fmt.Errorf("%s is too large", fh.Filename)
		}
		utils.Sugar.Errorf("store image %s: %v", fh.Filename, err)
		return "", http.StatusInternalServerError, 50031, errors.New("failed to save image")
	}
	return st.URL, 0, 0, nil
}

func (p *PostController) absFromURL(url string) string {
	name := url[strings.LastIndex(url, "/")+1:]
	dir, err := p.storage.Dir(imagesDir)
	if err != nil || name == "" {
		return ""
	}
	return filepath.Join(dir, name)
}

// loadEditable loads the post named by :id and checks the caller may edit it.
func (p *PostController) loadEditable(ctx *gin.Context) (*models.Post, bool) {
	pr, ok := getPrincipal(ctx)
	if !ok {
		return nil, false
	}
	id, ok := parseID(ctx, "id")
	if !ok {
		return nil, false
	}
	var post models.Post
	if err := p.db.Preload("User").First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40403, "post not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50027, "failed to load post")
		return nil, false
	}
	if !pr.Owns(post.UserID) {
		utils.Error(ctx, http.StatusForbidden, 40303, "you can only edit your own posts")
		return nil, false
	}
	return &post, true
}

func cleanImages(in []string) datatypes.JSONSlice[string] {
	out := make(datatypes.JSONSlice[string], 0, len(in))
	for _, u := range in {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
