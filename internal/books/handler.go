package books

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bookhub/internal/auth"
	"bookhub/internal/reviews"
	"bookhub/pkg/models"
)

type Handler struct {
	Repo    *Repo
	Reviews *reviews.Repo
}

func NewHandler(repo *Repo, reviewRepo *reviews.Repo) *Handler {
	return &Handler{Repo: repo, Reviews: reviewRepo}
}

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/search", h.search)
	rg.GET("", h.list)
	rg.GET("/:id", h.getByID)
}

func (h *Handler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.create)
}

func (h *Handler) search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": `search query "q" is required`})
		return
	}

	books, err := h.Repo.Search(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	c.JSON(http.StatusOK, books)
}

type createReq struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Genre  string `json:"genre"`
}

func (h *Handler) create(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Author = strings.TrimSpace(req.Author)
	req.Genre = strings.TrimSpace(req.Genre)
	if req.Title == "" || req.Author == "" || req.Genre == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title, author and genre are required"})
		return
	}

	book, err := h.Repo.Create(c.Request.Context(), models.Book{
		ID:     uuid.NewString(),
		Title:  req.Title,
		Author: req.Author,
		Genre:  req.Genre,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}

	c.JSON(http.StatusCreated, book)
}

func (h *Handler) list(c *gin.Context) {
	f := Filters{
		Author: c.Query("author"),
		Genre:  c.Query("genre"),
	}
	page := parseInt(c.Query("page"), 1)
	limit := clampLimit(parseInt(c.Query("limit"), 10), 10)
	if page < 1 {
		page = 1
	}

	total, err := h.Repo.Count(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}

	items, err := h.Repo.List(c.Request.Context(), f, limit, (page-1)*limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"books":       items,
		"totalPages":  totalPages(total, limit),
		"currentPage": page,
	})
}

func (h *Handler) getByID(c *gin.Context) {
	id := c.Param("id")

	book, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if book == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
		return
	}

	page := parseInt(c.Query("page"), 1)
	limit := clampLimit(parseInt(c.Query("limit"), 5), 5)
	if page < 1 {
		page = 1
	}

	reviewPage, err := h.Reviews.ListForBook(c.Request.Context(), id, limit, (page-1)*limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list reviews failed"})
		return
	}

	reviewCount, err := h.Reviews.CountForBook(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count reviews failed"})
		return
	}

	// averaged over the full review set, not just the returned page
	avg, err := h.Repo.AverageRating(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "average rating failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"book":          book,
		"averageRating": avg,
		"reviews": gin.H{
			"data":        reviewPage,
			"totalPages":  totalPages(reviewCount, limit),
			"currentPage": page,
		},
	})
}

// clampLimit keeps page sizes sane: non-positive values fall back to the
// default, oversized values are capped at 100 rather than reset.
func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > 100 {
		return 100
	}
	return limit
}

func totalPages(total, limit int) int {
	if total == 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
