package reviews

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"bookhub/pkg/models"
)

// ErrAlreadyReviewed is returned when the UNIQUE(book_id, user_id)
// constraint rejects an insert. The constraint is the atomic backstop for
// concurrent submissions; the handler's lookup only provides the friendly
// fast path.
var ErrAlreadyReviewed = errors.New("user already reviewed this book")

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) Create(ctx context.Context, rv models.Review) (*models.Review, error) {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO reviews (id, book_id, user_id, rating, comment)
		VALUES (?, ?, ?, ?, ?)
	`, rv.ID, rv.BookID, rv.UserID, rv.Rating, rv.Comment)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, ErrAlreadyReviewed
		}
		return nil, fmt.Errorf("insert review: %w", err)
	}
	return r.GetByID(ctx, rv.ID)
}

func (r *Repo) GetByID(ctx context.Context, id string) (*models.Review, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, book_id, user_id, rating, comment, created_at, updated_at
		FROM reviews
		WHERE id = ?
	`, id)

	var rv models.Review
	if err := row.Scan(&rv.ID, &rv.BookID, &rv.UserID, &rv.Rating, &rv.Comment, &rv.CreatedAt, &rv.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan review: %w", err)
	}
	return &rv, nil
}

func (r *Repo) Update(ctx context.Context, id string, rating int, comment string) (*models.Review, error) {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE reviews
		SET rating = ?, comment = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, rating, comment, id)
	if err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *Repo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM reviews
		WHERE id = ?
	`, id)
	if err != nil {
		return false, fmt.Errorf("delete review: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListForBook returns one page of a book's reviews, newest first, each
// joined with the reviewing user's username.
func (r *Repo) ListForBook(ctx context.Context, bookID string, limit, offset int) ([]models.ReviewWithUser, error) {
	if limit <= 0 {
		limit = 5
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT r.id, r.book_id, r.user_id, r.rating, r.comment, r.created_at, r.updated_at, u.username
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.book_id = ?
		ORDER BY r.created_at DESC
		LIMIT ? OFFSET ?
	`, bookID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	out := make([]models.ReviewWithUser, 0, limit)
	for rows.Next() {
		var rv models.ReviewWithUser
		if err := rows.Scan(&rv.ID, &rv.BookID, &rv.UserID, &rv.Rating, &rv.Comment, &rv.CreatedAt, &rv.UpdatedAt, &rv.Username); err != nil {
			return nil, fmt.Errorf("scan review row: %w", err)
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) CountForBook(ctx context.Context, bookID string) (int, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reviews WHERE book_id = ?
	`, bookID)

	var total int
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("count reviews: %w", err)
	}
	return total, nil
}

func (r *Repo) GetByBookAndUser(ctx context.Context, bookID, userID string) (*models.Review, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, book_id, user_id, rating, comment, created_at, updated_at
		FROM reviews
		WHERE book_id = ? AND user_id = ?
	`, bookID, userID)

	var rv models.Review
	if err := row.Scan(&rv.ID, &rv.BookID, &rv.UserID, &rv.Rating, &rv.Comment, &rv.CreatedAt, &rv.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get by book and user: %w", err)
	}
	return &rv, nil
}

// BookExists is a plain existence probe so this package does not have to
// depend on the books package.
func (r *Repo) BookExists(ctx context.Context, bookID string) (bool, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM books WHERE id = ?)
	`, bookID)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("book exists: %w", err)
	}
	return exists, nil
}
