package controllers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cppla/topichub/config"
	"github.com/cppla/topichub/fanout"
	"github.com/cppla/topichub/models"
	"github.com/cppla/topichub/store"
	"github.com/cppla/topichub/utils"
)

// PostController manages publish, query and mutation of posts. Publishing
// goes through the fan-out engine; everything else talks to the content
// store directly.
type PostController struct {
	engine  *fanout.Engine
	content store.ContentStore
}

// NewPostController creates a new PostController instance.
func NewPostController(engine *fanout.Engine, content store.ContentStore) *PostController {
	return &PostController{engine: engine, content: content}
}

// CreatePost publishes a new post from a multipart form with an optional
// image and fans out notifications to the topic's subscribers.
func (p *PostController) CreatePost(ctx *gin.Context) {
	id := strings.TrimSpace(ctx.PostForm("id"))
	title := utils.Sanitize(strings.TrimSpace(ctx.PostForm("title")))
	topic := utils.Sanitize(strings.TrimSpace(ctx.PostForm("topic")))
	description := utils.Sanitize(ctx.PostForm("description"))
	author := strings.TrimSpace(ctx.PostForm("author"))
	dateCreated := strings.TrimSpace(ctx.PostForm("dateCreated"))

	if id == "" || title == "" || topic == "" || description == "" || author == "" || dateCreated == "" {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeValidation,
			"id, title, topic, description, author and dateCreated are required")
		return
	}
	created, err := time.Parse(time.RFC3339, dateCreated)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeValidation, "dateCreated must be RFC3339")
		return
	}

	post := models.Post{
		ID:          id,
		Title:       title,
		Topic:       topic,
		Description: description,
		Author:      author,
		DateCreated: created,
	}

	if file, err := ctx.FormFile("image"); err == nil && file != nil {
		name := uuid.NewString() + filepath.Ext(file.Filename)
		dst := filepath.Join(config.Get().UploadDir, name)
		if err := ctx.SaveUploadedFile(file, dst); err != nil {
			utils.Error(ctx, http.StatusInternalServerError, utils.CodeInternal, "failed to store image")
			return
		}
		post.Image = "/" + filepath.ToSlash(dst)
	}

	result, err := p.engine.Publish(ctx.Request.Context(), post)
	if err != nil {
		utils.Error(ctx, http.StatusServiceUnavailable, utils.CodeStoreUnavailable, "failed to persist post")
		return
	}

	utils.InvalidateByPrefix("cache:posts:")
	utils.Success(ctx, result)
}

// ListPosts returns all posts, newest first.
func (p *PostController) ListPosts(ctx *gin.Context) {
	const cacheKey = "cache:posts:all"
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(200, "application/json", b)
		return
	}

	posts, err := p.content.All(ctx.Request.Context())
	if err != nil {
		utils.Error(ctx, http.StatusServiceUnavailable, utils.CodeStoreUnavailable, "failed to list posts")
		return
	}
	cacheAndSucceed(ctx, cacheKey, gin.H{"posts": posts})
}

// ListPostsByTopic returns all posts tagged with the given topic.
func (p *PostController) ListPostsByTopic(ctx *gin.Context) {
	topic := ctx.Param("topic")
	cacheKey := "cache:posts:topic=" + topic
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(200, "application/json", b)
		return
	}

	posts, err := p.content.ByTopic(ctx.Request.Context(), topic)
	if err != nil {
		utils.Error(ctx, http.StatusServiceUnavailable, utils.CodeStoreUnavailable, "failed to list posts")
		return
	}
	cacheAndSucceed(ctx, cacheKey, gin.H{"posts": posts})
}

// UpdatePost applies a partial document merge to an existing post.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	id := ctx.Param("id")

	var fields map[string]any
	if err := ctx.ShouldBindJSON(&fields); err != nil || len(fields) == 0 {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeValidation, "invalid request payload")
		return
	}

	if err := p.content.Update(ctx.Request.Context(), id, fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, utils.CodeNotFound, "post not found")
			return
		}
		utils.Error(ctx, http.StatusServiceUnavailable, utils.CodeStoreUnavailable, "failed to update post")
		return
	}

	utils.InvalidateByPrefix("cache:posts:")
	utils.Success(ctx, gin.H{"id": id})
}

// DeletePost removes a post.
func (p *PostController) DeletePost(ctx *gin.Context) {
	id := ctx.Param("id")

	if err := p.content.Delete(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, utils.CodeNotFound, "post not found")
			return
		}
		utils.Error(ctx, http.StatusServiceUnavailable, utils.CodeStoreUnavailable, "failed to delete post")
		return
	}

	utils.InvalidateByPrefix("cache:posts:")
	utils.Success(ctx, gin.H{"id": id})
}

// SearchPosts runs a fuzzy, ranked full-text query across title, topic and
// description.
func (p *PostController) SearchPosts(ctx *gin.Context) {
	q := strings.TrimSpace(ctx.Query("q"))
	if q == "" {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeValidation, "query text is required")
		return
	}

	posts, err := p.content.Search(ctx.Request.Context(), q)
	if err != nil {
		utils.Error(ctx, http.StatusServiceUnavailable, utils.CodeStoreUnavailable, "search failed")
		return
	}
	utils.Success(ctx, gin.H{"posts": posts})
}

// cacheAndSucceed stores the wrapped response for later cache hits and
// writes the success envelope.
func cacheAndSucceed(ctx *gin.Context, key string, payload gin.H) {
	utils.CacheSetJSON(key, utils.JSONResponse{Code: 0, Message: "success", Data: payload}, time.Hour)
	utils.Success(ctx, payload)
}
