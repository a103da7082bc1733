package model

import (
	"strings"
	"time"
	"unicode"

	"github.com/Astemirdum/library-management/library/internal/errs"
)

const DefaultLanguage = "English"

type Book struct {
	ID              int64      `json:"id" db:"id"`
	Title           string     `json:"title" db:"title"`
	Author          string     `json:"author" db:"author"`
	ISBN            string     `json:"isbn" db:"isbn"`
	Publisher       string     `json:"publisher" db:"publisher"`
	PublicationDate *time.Time `json:"publication_date" db:"publication_date"`
	PageCount       int        `json:"page_count" db:"page_count"`
	Language        string     `json:"language" db:"language"`
	Description     string     `json:"description" db:"description"`
	CoverImage      string     `json:"cover_image" db:"cover_image"`
	TotalCopies     int        `json:"total_copies" db:"total_copies"`
	AvailableCopies int        `json:"available_copies" db:"available_copies"`
	Category        string     `json:"category" db:"category"`
	ShelfLocation   string     `json:"shelf_location" db:"shelf_location"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

func (b Book) IsAvailable() bool {
	return b.AvailableCopies > 0
}

func (b Book) BorrowedCopies() int {
	return b.TotalCopies - b.AvailableCopies
}

// Borrow takes one copy off the shelf. It reports false, leaving the book
// untouched, when no copy is available.
func (b *Book) Borrow() bool {
	if b.AvailableCopies <= 0 {
		return false
	}
	b.AvailableCopies--
	return true
}

// ReturnCopy puts one copy back. It reports false when every copy is already
// on the shelf.
func (b *Book) ReturnCopy() bool {
	if b.AvailableCopies >= b.TotalCopies {
		return false
	}
	b.AvailableCopies++
	return true
}

// Validate checks the copy invariant and page count of a book about to be stored.
func (b Book) Validate() error {
	vErr := &errs.ValidationError{}
	if b.PageCount < 1 {
		vErr.Add("page_count", "must be at least 1")
	}
	if b.TotalCopies < 1 {
		vErr.Add("total_copies", "must be at least 1")
	}
	if b.AvailableCopies < 0 {
		vErr.Add("available_copies", "must be at least 0")
	}
	if b.AvailableCopies > b.TotalCopies {
		vErr.Add("available_copies", "available copies cannot exceed total copies")
	}
	if len(vErr.Fields) > 0 {
		return vErr
	}
	return nil
}

// NormalizeISBN strips hyphens and spaces and checks that 10 or 13 digits remain.
func NormalizeISBN(raw string) (string, error) {
	isbn := strings.NewReplacer("-", "", " ", "").Replace(raw)
	if len(isbn) != 10 && len(isbn) != 13 {
		return "", errs.NewValidationError("isbn", "ISBN must be 10 or 13 characters long")
	}
	for _, r := range isbn {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return "", errs.NewValidationError("isbn", "ISBN must contain only digits")
		}
	}
	return isbn, nil
}

type BookDetail struct {
	Book             `json:",inline"`
	IsAvailable      bool `json:"is_available"`
	BorrowedCopies   int  `json:"borrowed_copies"`
	ActiveLoansCount int  `json:"active_loans_count"`
}

func NewBookDetail(b Book, activeLoans int) BookDetail {
	return BookDetail{
		Book:             b,
		IsAvailable:      b.IsAvailable(),
		BorrowedCopies:   b.BorrowedCopies(),
		ActiveLoansCount: activeLoans,
	}
}

type BookListItem struct {
	ID              int64  `json:"id" db:"id"`
	Title           string `json:"title" db:"title"`
	Author          string `json:"author" db:"author"`
	ISBN            string `json:"isbn" db:"isbn"`
	Category        string `json:"category" db:"category"`
	AvailableCopies int    `json:"available_copies" db:"available_copies"`
	IsAvailable     bool   `json:"is_available" db:"-"`
}

type ListBooks struct {
	Paging `json:",inline"`
	Items  []BookListItem `json:"items"`
}

type BookFilter struct {
	Category  string
	Author    string
	Language  string
	Available *bool
	Search    string
	Ordering  string
	Paging    Paging
}

type CreateBookRequest struct {
	Title           string     `json:"title" validate:"required,max=255"`
	Author          string     `json:"author" validate:"required,max=255"`
	ISBN            string     `json:"isbn" validate:"required"`
	Publisher       string     `json:"publisher" validate:"max=255"`
	PublicationDate *time.Time `json:"publication_date"`
	PageCount       int        `json:"page_count" validate:"required,min=1"`
	Language        string     `json:"language" validate:"max=50"`
	Description     string     `json:"description"`
	CoverImage      string     `json:"cover_image" validate:"omitempty,url"`
	TotalCopies     *int       `json:"total_copies" validate:"omitempty,min=1"`
	AvailableCopies *int       `json:"available_copies" validate:"omitempty,min=0"`
	Category        string     `json:"category" validate:"max=100"`
	ShelfLocation   string     `json:"shelf_location" validate:"max=50"`
}

// NewBook builds a validated book from a create request. Total copies default
// to 1 and available copies to the total.
func NewBook(req CreateBookRequest) (Book, error) {
	isbn, err := NormalizeISBN(req.ISBN)
	if err != nil {
		return Book{}, err
	}
	b := Book{
		Title:           req.Title,
		Author:          req.Author,
		ISBN:            isbn,
		Publisher:       req.Publisher,
		PublicationDate: req.PublicationDate,
		PageCount:       req.PageCount,
		Language:        req.Language,
		Description:     req.Description,
		CoverImage:      req.CoverImage,
		TotalCopies:     1,
		Category:        req.Category,
		ShelfLocation:   req.ShelfLocation,
	}
	if b.Language == "" {
		b.Language = DefaultLanguage
	}
	if req.TotalCopies != nil {
		b.TotalCopies = *req.TotalCopies
	}
	b.AvailableCopies = b.TotalCopies
	if req.AvailableCopies != nil {
		b.AvailableCopies = *req.AvailableCopies
	}
	if err := b.Validate(); err != nil {
		return Book{}, err
	}
	return b, nil
}

// UpdateBookRequest never carries available copies: those move only through
// borrow and return. Changing total copies shifts available copies by the same
// delta so the number of borrowed copies is kept.
type UpdateBookRequest struct {
	Title           *string    `json:"title" validate:"omitempty,max=255"`
	Author          *string    `json:"author" validate:"omitempty,max=255"`
	ISBN            *string    `json:"isbn"`
	Publisher       *string    `json:"publisher" validate:"omitempty,max=255"`
	PublicationDate *time.Time `json:"publication_date"`
	PageCount       *int       `json:"page_count" validate:"omitempty,min=1"`
	Language        *string    `json:"language" validate:"omitempty,max=50"`
	Description     *string    `json:"description"`
	CoverImage      *string    `json:"cover_image" validate:"omitempty,url"`
	TotalCopies     *int       `json:"total_copies" validate:"omitempty,min=1"`
	Category        *string    `json:"category" validate:"omitempty,max=100"`
	ShelfLocation   *string    `json:"shelf_location" validate:"omitempty,max=50"`
}

// Apply returns b with the request applied, validated against the copy invariant.
func (r UpdateBookRequest) Apply(b Book) (Book, error) {
	if r.ISBN != nil {
		isbn, err := NormalizeISBN(*r.ISBN)
		if err != nil {
			return Book{}, err
		}
		b.ISBN = isbn
	}
	setString(&b.Title, r.Title)
	setString(&b.Author, r.Author)
	setString(&b.Publisher, r.Publisher)
	setString(&b.Language, r.Language)
	setString(&b.Description, r.Description)
	setString(&b.CoverImage, r.CoverImage)
	setString(&b.Category, r.Category)
	setString(&b.ShelfLocation, r.ShelfLocation)
	if r.PublicationDate != nil {
		b.PublicationDate = r.PublicationDate
	}
	if r.PageCount != nil {
		b.PageCount = *r.PageCount
	}
	if r.TotalCopies != nil {
		borrowed := b.BorrowedCopies()
		if *r.TotalCopies < borrowed {
			return Book{}, errs.NewValidationError("total_copies", "total copies cannot be less than borrowed copies")
		}
		b.TotalCopies = *r.TotalCopies
		b.AvailableCopies = b.TotalCopies - borrowed
	}
	if err := b.Validate(); err != nil {
		return Book{}, err
	}
	return b, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

type BookStats struct {
	TotalBooks      int `json:"total_books" db:"total_books"`
	AvailableBooks  int `json:"available_books" db:"available_books"`
	BorrowedBooks   int `json:"borrowed_books" db:"borrowed_books"`
	TotalCopies     int `json:"total_copies" db:"total_copies"`
	AvailableCopies int `json:"available_copies" db:"available_copies"`
	Categories      int `json:"categories" db:"categories"`
}
