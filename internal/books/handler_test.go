package books

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookhub/internal/auth"
	"bookhub/internal/reviews"
)

func setupRouter(t *testing.T) (*gin.Engine, *sql.DB, auth.TokenService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := openTestDB(t)
	tokens := auth.TokenService{
		Secret:   []byte("test-secret"),
		Issuer:   "bookhub-test",
		Duration: time.Hour,
	}

	h := NewHandler(NewRepo(db), reviews.NewRepo(db))

	router := gin.New()
	api := router.Group("/api")
	h.RegisterPublicRoutes(api.Group("/books"))

	protected := api.Group("/books")
	protected.Use(auth.AuthMiddleware(tokens))
	h.RegisterProtectedRoutes(protected)

	return router, db, tokens
}

func tokenFor(t *testing.T, tokens auth.TokenService, id, username string) string {
	t.Helper()
	tok, _, err := tokens.Sign(&auth.User{ID: id, Username: username})
	require.NoError(t, err)
	return tok
}

func doReq(router *gin.Engine, method, path, token string, payload any) *httptest.ResponseRecorder {
	var body *bytes.Reader
	if payload != nil {
		b, _ := json.Marshal(payload)
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSearchEndpoint(t *testing.T) {
	router, db, _ := setupRouter(t)
	repo := NewRepo(db)
	seedBook(t, db, repo, "Dune", "Herbert", "SciFi")

	// empty query is a bad request
	w := doReq(router, http.MethodGet, "/api/books/search", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doReq(router, http.MethodGet, "/api/books/search?q=dune", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Dune")
}

func TestAddBook(t *testing.T) {
	router, _, tokens := setupRouter(t)
	token := tokenFor(t, tokens, "u1", "alice")

	// unauthenticated
	w := doReq(router, http.MethodPost, "/api/books", "", map[string]string{
		"title": "Dune", "author": "Herbert", "genre": "SciFi",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// missing field
	w = doReq(router, http.MethodPost, "/api/books", token, map[string]string{
		"title": "Dune", "author": "Herbert",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// ok
	w = doReq(router, http.MethodPost, "/api/books", token, map[string]string{
		"title": "Dune", "author": "Herbert", "genre": "SciFi",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// searchable afterwards, case-insensitively
	w = doReq(router, http.MethodGet, "/api/books/search?q=dune", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Dune")
}

func TestListEndpoint_Pagination(t *testing.T) {
	router, db, _ := setupRouter(t)
	repo := NewRepo(db)
	for i := 0; i < 7; i++ {
		seedBook(t, db, repo, fmt.Sprintf("Book %d", i), "Author", "Genre")
	}

	w := doReq(router, http.MethodGet, "/api/books?limit=3&page=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Books       []json.RawMessage `json:"books"`
		TotalPages  int               `json:"totalPages"`
		CurrentPage int               `json:"currentPage"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Books, 3)
	assert.Equal(t, 3, resp.TotalPages) // ceil(7/3)
	assert.Equal(t, 1, resp.CurrentPage)

	// last page has the remainder
	w = doReq(router, http.MethodGet, "/api/books?limit=3&page=3", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Books, 1)
	assert.Equal(t, 3, resp.CurrentPage)

	// author filter is exact-match
	w = doReq(router, http.MethodGet, "/api/books?author=Nobody", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Books)
	assert.Equal(t, 0, resp.TotalPages)

	// an oversized limit is capped at 100, not reset to the default,
	// so it never returns fewer rows than limit=100 would
	w = doReq(router, http.MethodGet, "/api/books?limit=101", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Books, 7)
	assert.Equal(t, 1, resp.TotalPages)
}

func TestGetByIDEndpoint(t *testing.T) {
	router, db, _ := setupRouter(t)
	repo := NewRepo(db)
	b := seedBook(t, db, repo, "Dune", "Herbert", "SciFi")

	seedUser(t, db, "u1", "alice")
	seedUser(t, db, "u2", "bob")
	seedReview(t, db, b.ID, "u1", 4)
	seedReview(t, db, b.ID, "u2", 5)

	w := doReq(router, http.MethodGet, "/api/books/"+b.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Book          struct{ Title string } `json:"book"`
		AverageRating float64                `json:"averageRating"`
		Reviews       struct {
			Data []struct {
				Rating   int    `json:"rating"`
				Username string `json:"username"`
			} `json:"data"`
			TotalPages  int `json:"totalPages"`
			CurrentPage int `json:"currentPage"`
		} `json:"reviews"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Dune", resp.Book.Title)
	assert.Equal(t, 4.5, resp.AverageRating)
	assert.Len(t, resp.Reviews.Data, 2)
	assert.Equal(t, 1, resp.Reviews.TotalPages)
	assert.Equal(t, 1, resp.Reviews.CurrentPage)

	// every review row carries the reviewer's username
	usernames := map[string]bool{}
	for _, rv := range resp.Reviews.Data {
		usernames[rv.Username] = true
	}
	assert.True(t, usernames["alice"])
	assert.True(t, usernames["bob"])

	// the average covers all reviews even when only one page is returned
	w = doReq(router, http.MethodGet, "/api/books/"+b.ID+"?limit=1&page=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Reviews.Data, 1)
	assert.Equal(t, 2, resp.Reviews.TotalPages)
	assert.Equal(t, 4.5, resp.AverageRating)
}

func TestGetByIDEndpoint_ReviewLimitClamped(t *testing.T) {
	router, db, _ := setupRouter(t)
	repo := NewRepo(db)
	b := seedBook(t, db, repo, "Dune", "Herbert", "SciFi")

	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("u%d", i)
		seedUser(t, db, id, "reader"+id)
		seedReview(t, db, b.ID, id, 4)
	}

	// limit above the cap behaves like limit=100: all six reviews on one page
	w := doReq(router, http.MethodGet, "/api/books/"+b.ID+"?limit=101", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Reviews struct {
			Data       []json.RawMessage `json:"data"`
			TotalPages int               `json:"totalPages"`
		} `json:"reviews"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Reviews.Data, 6)
	assert.Equal(t, 1, resp.Reviews.TotalPages)
}

func TestGetByIDEndpoint_NotFound(t *testing.T) {
	router, _, _ := setupRouter(t)

	w := doReq(router, http.MethodGet, "/api/books/no-such-id", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
