package repository

import (
	"context"
	"strings"

	"github.com/Astemirdum/library-management/library/internal/errs"
	"github.com/Astemirdum/library-management/library/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var bookColumns = []string{
	"id", "title", "author", "isbn", "publisher", "publication_date", "page_count", "language",
	"description", "cover_image", "total_copies", "available_copies", "category", "shelf_location",
	"created_at", "updated_at",
}

var bookOrdering = map[string]string{
	"title":             "title asc",
	"-title":            "title desc",
	"author":            "author asc",
	"-author":           "author desc",
	"publication_date":  "publication_date asc nulls last",
	"-publication_date": "publication_date desc nulls last",
	"created_at":        "created_at asc",
	"-created_at":       "created_at desc",
}

const (
	// Conditional single-row updates: the predicate is the guard, so two
	// concurrent borrowers of the last copy cannot both succeed.
	borrowCopyQuery = `update books
    set available_copies = available_copies - 1, updated_at = now()
where id = $1 and available_copies > 0`

	returnCopyQuery = `update books
    set available_copies = available_copies + 1, updated_at = now()
where id = $1 and available_copies < total_copies`
)

func (r *repository) CreateBook(ctx context.Context, book model.Book) (model.Book, error) {
	b := qb.Insert(booksTableName).
		Columns("title", "author", "isbn", "publisher", "publication_date", "page_count", "language",
			"description", "cover_image", "total_copies", "available_copies", "category", "shelf_location").
		Values(book.Title, book.Author, book.ISBN, book.Publisher, book.PublicationDate, book.PageCount, book.Language,
			book.Description, book.CoverImage, book.TotalCopies, book.AvailableCopies, book.Category, book.ShelfLocation).
		Suffix("returning " + strings.Join(bookColumns, ", "))

	var created model.Book
	if err := r.get(ctx, &created, b); err != nil {
		return model.Book{}, err
	}
	return created, nil
}

func (r *repository) GetBook(ctx context.Context, id int64) (model.Book, error) {
	var book model.Book
	b := qb.Select(bookColumns...).From(booksTableName).Where(sq.Eq{"id": id})
	if err := r.get(ctx, &book, b); err != nil {
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) ListBooks(ctx context.Context, filter model.BookFilter) (model.ListBooks, error) {
	paging := filter.Paging.Normalize()
	where := bookFilter(filter)

	var total int
	if err := r.get(ctx, &total, qb.Select("count(*)").From(booksTableName).Where(where)); err != nil {
		return model.ListBooks{}, err
	}

	order, ok := bookOrdering[filter.Ordering]
	if !ok {
		order = bookOrdering["title"]
	}
	q, args, err := qb.Select("id", "title", "author", "isbn", "category", "available_copies").
		From(booksTableName).
		Where(where).
		OrderBy(order, "id asc").
		Limit(uint64(paging.PageSize)).
		Offset(paging.Offset()).
		ToSql()
	if err != nil {
		return model.ListBooks{}, err
	}
	r.log.Debug("ListBooks", zap.String("query", q), zap.Any("args", args))

	items := make([]model.BookListItem, 0)
	if err := sqlx.SelectContext(ctx, r.db, &items, q, args...); err != nil {
		return model.ListBooks{}, err
	}
	for i := range items {
		items[i].IsAvailable = items[i].AvailableCopies > 0
	}
	paging.TotalElements = total
	return model.ListBooks{Paging: paging, Items: items}, nil
}

func bookFilter(f model.BookFilter) sq.And {
	where := sq.And{}
	if f.Category != "" {
		where = append(where, sq.Eq{"category": f.Category})
	}
	if f.Author != "" {
		where = append(where, sq.Eq{"author": f.Author})
	}
	if f.Language != "" {
		where = append(where, sq.Eq{"language": f.Language})
	}
	if f.Available != nil {
		if *f.Available {
			where = append(where, sq.Gt{"available_copies": 0})
		} else {
			where = append(where, sq.Eq{"available_copies": 0})
		}
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + s + "%"
		where = append(where, sq.Or{
			sq.ILike{"title": pattern},
			sq.ILike{"author": pattern},
			sq.ILike{"isbn": pattern},
			sq.ILike{"description": pattern},
		})
	}
	return where
}

// UpdateBook stores every editable field. available_copies moves by the same
// delta as total_copies, re-evaluated against the row as it is at write time.
func (r *repository) UpdateBook(ctx context.Context, book model.Book) (model.Book, error) {
	b := qb.Update(booksTableName).
		SetMap(map[string]interface{}{
			"title":            book.Title,
			"author":           book.Author,
			"isbn":             book.ISBN,
			"publisher":        book.Publisher,
			"publication_date": book.PublicationDate,
			"page_count":       book.PageCount,
			"language":         book.Language,
			"description":      book.Description,
			"cover_image":      book.CoverImage,
			"available_copies": sq.Expr("available_copies + (? - total_copies)", book.TotalCopies),
			"total_copies":     book.TotalCopies,
			"category":         book.Category,
			"shelf_location":   book.ShelfLocation,
			"updated_at":       sq.Expr("now()"),
		}).
		Where(sq.Eq{"id": book.ID}).
		Suffix("returning " + strings.Join(bookColumns, ", "))

	var updated model.Book
	if err := r.get(ctx, &updated, b); err != nil {
		return model.Book{}, err
	}
	return updated, nil
}

func (r *repository) DeleteBook(ctx context.Context, id int64) error {
	n, err := r.exec(ctx, qb.Delete(booksTableName).Where(sq.Eq{"id": id}))
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *repository) BorrowCopy(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, borrowCopyQuery, id)
	if err != nil {
		return false, mapError(err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *repository) ReturnCopy(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, returnCopyQuery, id)
	if err != nil {
		return false, mapError(err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *repository) BookStats(ctx context.Context) (model.BookStats, error) {
	const q = `
select count(*)                                          as total_books,
       count(*) filter (where available_copies > 0)      as available_books,
       count(*) filter (where available_copies = 0)      as borrowed_books,
       coalesce(sum(total_copies), 0)                    as total_copies,
       coalesce(sum(available_copies), 0)                as available_copies,
       count(distinct nullif(category, ''))              as categories
from books`
	var stats model.BookStats
	if err := sqlx.GetContext(ctx, r.db, &stats, q); err != nil {
		return model.BookStats{}, err
	}
	return stats, nil
}

func (r *repository) Categories(ctx context.Context) ([]string, error) {
	q, args, err := qb.Select("distinct category").
		From(booksTableName).
		Where(sq.NotEq{"category": ""}).
		OrderBy("category").
		ToSql()
	if err != nil {
		return nil, err
	}
	categories := make([]string, 0)
	if err := sqlx.SelectContext(ctx, r.db, &categories, q, args...); err != nil {
		return nil, err
	}
	return categories, nil
}
