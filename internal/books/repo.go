package books

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"bookhub/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

// Filters are exact-match listing filters; empty fields are ignored.
type Filters struct {
	Author string
	Genre  string
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) Create(ctx context.Context, b models.Book) (*models.Book, error) {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO books (id, title, author, genre)
		VALUES (?, ?, ?, ?)
	`, b.ID, b.Title, b.Author, b.Genre)
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}
	return r.GetByID(ctx, b.ID)
}

func (r *Repo) GetByID(ctx context.Context, id string) (*models.Book, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, title, author, genre, created_at, updated_at
		FROM books
		WHERE id = ?
	`, id)

	var b models.Book
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan book: %w", err)
	}
	return &b, nil
}

// Search matches the query as a case-insensitive substring of title or author.
func (r *Repo) Search(ctx context.Context, query string) ([]models.Book, error) {
	kw := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, title, author, genre, created_at, updated_at
		FROM books
		WHERE LOWER(title) LIKE ? OR LOWER(author) LIKE ?
		ORDER BY title ASC
	`, kw, kw)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	defer rows.Close()

	return scanBooks(rows)
}

func (r *Repo) Count(ctx context.Context, f Filters) (int, error) {
	sqlStr, args := buildListSQL(f, true, 0, 0)
	row := r.DB.QueryRowContext(ctx, sqlStr, args...)
	var total int
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return total, nil
}

func (r *Repo) List(ctx context.Context, f Filters, limit, offset int) ([]models.Book, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	sqlStr, args := buildListSQL(f, false, limit, offset)
	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	return scanBooks(rows)
}

// AverageRating folds over ALL of a book's reviews at read time; nothing is
// cached or stored. Returns 0 when the book has no reviews. The result is
// rounded to one decimal place.
func (r *Repo) AverageRating(ctx context.Context, bookID string) (float64, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(rating), 0)
		FROM reviews
		WHERE book_id = ?
	`, bookID)

	var avg float64
	if err := row.Scan(&avg); err != nil {
		return 0, fmt.Errorf("average rating: %w", err)
	}
	return math.Round(avg*10) / 10, nil
}

func scanBooks(rows *sql.Rows) ([]models.Book, error) {
	out := make([]models.Book, 0)
	for rows.Next() {
		var b models.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan book row: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func buildListSQL(f Filters, countOnly bool, limit, offset int) (string, []any) {
	baseSelect := `
		SELECT id, title, author, genre, created_at, updated_at
		FROM books
	`
	if countOnly {
		baseSelect = `SELECT COUNT(*) FROM books`
	}

	var where []string
	var args []any

	if strings.TrimSpace(f.Author) != "" {
		where = append(where, "author = ?")
		args = append(args, strings.TrimSpace(f.Author))
	}
	if strings.TrimSpace(f.Genre) != "" {
		where = append(where, "genre = ?")
		args = append(args, strings.TrimSpace(f.Genre))
	}

	sqlStr := baseSelect
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}

	if !countOnly {
		sqlStr += " ORDER BY title ASC LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	return sqlStr, args
}
