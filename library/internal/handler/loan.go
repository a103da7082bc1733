package handler

import (
	"net/http"

	"github.com/Astemirdum/library-management/library/internal/model"
	"github.com/labstack/echo/v4"
)

const msgBorrowed = "Book borrowed successfully"

type borrowResponse struct {
	Loan    model.LoanDetail `json:"loan"`
	Message string           `json:"message"`
}

func (h *Handler) Borrow(c echo.Context) error {
	var req model.BorrowRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	loan, err := h.loanSvc.Borrow(c.Request().Context(), identity(c), req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, borrowResponse{Loan: loan, Message: msgBorrowed})
}

func (h *Handler) Return(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req model.ReturnRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	res, err := h.loanSvc.Return(c.Request().Context(), identity(c), id, req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ListLoans(c echo.Context) error {
	paging, err := queryPaging(c)
	if err != nil {
		return err
	}
	filter := model.LoanFilter{
		Status: model.LoanStatus(c.QueryParam("status")),
		Paging: paging,
	}
	switch filter.Status {
	case "", model.LoanStatusActive, model.LoanStatusReturned, model.LoanStatusOverdue:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "status is invalid")
	}
	if filter.BookID, err = queryInt64(c, "book_id"); err != nil {
		return err
	}
	if filter.UserID, err = queryInt64(c, "user_id"); err != nil {
		return err
	}

	loans, err := h.loanSvc.ListLoans(c.Request().Context(), identity(c), filter)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, loans)
}

func (h *Handler) GetLoan(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	loan, err := h.loanSvc.GetLoan(c.Request().Context(), identity(c), id)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, loan)
}

func (h *Handler) MyLoans(c echo.Context) error {
	loans, err := h.loanSvc.MyLoans(c.Request().Context(), identity(c))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, loans)
}

func (h *Handler) UpdateLoan(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req model.UpdateLoanRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	loan, err := h.loanSvc.UpdateLoan(c.Request().Context(), identity(c), id, req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, loan)
}

func (h *Handler) DeleteLoan(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.loanSvc.DeleteLoan(c.Request().Context(), identity(c), id); err != nil {
		return h.httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) LoanStats(c echo.Context) error {
	stats, err := h.loanSvc.LoanStats(c.Request().Context(), identity(c))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) CalculateFine(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	loan, err := h.loanSvc.CalculateFine(c.Request().Context(), identity(c), id)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, loan)
}

func (h *Handler) CalculateOverdueFines(c echo.Context) error {
	res, err := h.loanSvc.CalculateOverdueFines(c.Request().Context(), identity(c))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}
