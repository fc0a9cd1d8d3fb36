package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookhub/pkg/database"
)

func main() {
	var (
		booksIn = flag.String("books", "data/books.csv", "input CSV path for books")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	n, err := importBooks(ctx, db, *booksIn)
	if err != nil {
		log.Fatalf("import books failed: %v", err)
	}

	log.Printf("imported %d books from %s", n, *booksIn)
}

func importBooks(ctx context.Context, db *sql.DB, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := readHeader(r)
	if err != nil {
		return 0, err
	}

	titleIdx := indexOf(header, "title")
	authorIdx := indexOf(header, "author")
	genreIdx := indexOf(header, "genre")
	if titleIdx < 0 || authorIdx < 0 || genreIdx < 0 {
		return 0, fmt.Errorf("csv header must contain title, author and genre, got %v", header)
	}

	imported := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read record: %w", err)
		}

		title := field(record, titleIdx)
		author := field(record, authorIdx)
		genre := field(record, genreIdx)
		if title == "" || author == "" || genre == "" {
			log.Printf("skipping incomplete row: %v", record)
			continue
		}

		_, err = db.ExecContext(ctx, `
			INSERT INTO books (id, title, author, genre)
			VALUES (?, ?, ?, ?)
		`, uuid.NewString(), title, author, genre)
		if err != nil {
			return imported, fmt.Errorf("insert book %q: %w", title, err)
		}
		imported++
	}

	return imported, nil
}

func readHeader(r *csv.Reader) ([]string, error) {
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}
	return header, nil
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
