package service

import (
	"context"

	"github.com/Astemirdum/library-management/library/internal/model"
	"github.com/Astemirdum/library-management/library/internal/policy"
	libraryRepo "github.com/Astemirdum/library-management/library/internal/repository"
	"github.com/Astemirdum/library-management/pkg/auth"
)

func (s *Service) CreateBook(ctx context.Context, who auth.Identity, req model.CreateBookRequest) (model.Book, error) {
	if err := policy.Check(&who, policy.AdminOnly, 0); err != nil {
		return model.Book{}, err
	}
	book, err := model.NewBook(req)
	if err != nil {
		return model.Book{}, err
	}
	return s.repo.CreateBook(ctx, book)
}

func (s *Service) GetBook(ctx context.Context, id int64) (model.BookDetail, error) {
	book, err := s.repo.GetBook(ctx, id)
	if err != nil {
		return model.BookDetail{}, err
	}
	active, err := s.repo.CountOpenLoansByBook(ctx, id)
	if err != nil {
		return model.BookDetail{}, err
	}
	return model.NewBookDetail(book, active), nil
}

func (s *Service) ListBooks(ctx context.Context, filter model.BookFilter) (model.ListBooks, error) {
	return s.repo.ListBooks(ctx, filter)
}

// UpdateBook applies a partial edit. Available copies follow a change of total
// copies and are otherwise left to borrow and return.
func (s *Service) UpdateBook(ctx context.Context, who auth.Identity, id int64, req model.UpdateBookRequest) (model.Book, error) {
	if err := policy.Check(&who, policy.AdminOnly, 0); err != nil {
		return model.Book{}, err
	}
	var updated model.Book
	err := s.repo.InTx(ctx, func(tx libraryRepo.Repository) error {
		book, err := tx.GetBook(ctx, id)
		if err != nil {
			return err
		}
		book, err = req.Apply(book)
		if err != nil {
			return err
		}
		updated, err = tx.UpdateBook(ctx, book)
		return err
	})
	return updated, err
}

func (s *Service) DeleteBook(ctx context.Context, who auth.Identity, id int64) error {
	if err := policy.Check(&who, policy.AdminOnly, 0); err != nil {
		return err
	}
	return s.repo.DeleteBook(ctx, id)
}

func (s *Service) BookStats(ctx context.Context) (model.BookStats, error) {
	return s.repo.BookStats(ctx)
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.repo.Categories(ctx)
}
