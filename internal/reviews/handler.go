package reviews

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bookhub/internal/auth"
	"bookhub/internal/feed"
	"bookhub/pkg/models"
)

const maxCommentLen = 500

type Handler struct {
	Repo *Repo
	Hub  *feed.Hub
}

func NewHandler(repo *Repo, hub *feed.Hub) *Handler {
	return &Handler{Repo: repo, Hub: hub}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/books/:bookId/reviews", h.create)
	rg.PUT("/:id", h.update)
	rg.DELETE("/:id", h.delete)
}

type createReq struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *Handler) create(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	bookID := strings.TrimSpace(c.Param("bookId"))
	if bookID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "book id required"})
		return
	}

	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if req.Rating < 1 || req.Rating > 5 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rating must be between 1 and 5"})
		return
	}
	comment := strings.TrimSpace(req.Comment)
	if comment == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "comment required"})
		return
	}
	// the limit counts characters, not bytes
	if utf8.RuneCountInString(comment) > maxCommentLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "comment cannot be more than 500 characters"})
		return
	}

	exists, err := h.Repo.BookExists(c.Request.Context(), bookID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
		return
	}

	if prev, _ := h.Repo.GetByBookAndUser(c.Request.Context(), bookID, claims.UserID); prev != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "you have already reviewed this book"})
		return
	}

	review, err := h.Repo.Create(c.Request.Context(), models.Review{
		ID:      uuid.NewString(),
		BookID:  bookID,
		UserID:  claims.UserID,
		Rating:  req.Rating,
		Comment: comment,
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyReviewed) {
			// lost a race with a concurrent submission; the constraint wins
			c.JSON(http.StatusBadRequest, gin.H{"error": "you have already reviewed this book"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}

	h.broadcast("review.created", review)
	c.JSON(http.StatusCreated, review)
}

type updateReq struct {
	Rating  *int    `json:"rating"`
	Comment *string `json:"comment"`
}

func (h *Handler) update(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id required"})
		return
	}

	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	review, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if review == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
		return
	}

	// only the owning user may touch the review
	if review.UserID != claims.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized to update this review"})
		return
	}

	// fields are optional; omitted fields keep their stored value
	rating := review.Rating
	if req.Rating != nil {
		if *req.Rating < 1 || *req.Rating > 5 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rating must be between 1 and 5"})
			return
		}
		rating = *req.Rating
	}
	comment := review.Comment
	if req.Comment != nil {
		trimmed := strings.TrimSpace(*req.Comment)
		if trimmed == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "comment cannot be empty"})
			return
		}
		if utf8.RuneCountInString(trimmed) > maxCommentLen {
			c.JSON(http.StatusBadRequest, gin.H{"error": "comment cannot be more than 500 characters"})
			return
		}
		comment = trimmed
	}

	updated, err := h.Repo.Update(c.Request.Context(), id, rating, comment)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}

	h.broadcast("review.updated", updated)
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) delete(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id required"})
		return
	}

	review, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if review == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
		return
	}

	if review.UserID != claims.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized to delete this review"})
		return
	}

	ok, err := h.Repo.Delete(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
		return
	}

	h.broadcast("review.deleted", review)
	c.JSON(http.StatusOK, gin.H{"message": "review removed successfully"})
}

func (h *Handler) broadcast(eventType string, rv *models.Review) {
	if h.Hub == nil || rv == nil {
		return
	}
	ev := feed.ReviewEvent{
		Type:     eventType,
		ReviewID: rv.ID,
		BookID:   rv.BookID,
		UserID:   rv.UserID,
		Rating:   rv.Rating,
		At:       time.Now().UTC(),
	}
	go h.Hub.BroadcastJSON(ev)
}
