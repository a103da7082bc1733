package handler

import (
	"net/http"
	"strconv"

	"github.com/Astemirdum/library-management/library/internal/errs"
	"github.com/Astemirdum/library-management/library/internal/model"
	"github.com/Astemirdum/library-management/pkg/validate"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	msgValidation = "validation error"
	msgInternal   = "internal server error"
)

// httpError maps a service error onto the api status taxonomy.
func (h *Handler) httpError(err error) error {
	if vErr, ok := errs.IsValidation(err); ok {
		return echo.NewHTTPError(http.StatusBadRequest, errs.ValidationErrorResponse{
			Message: msgValidation,
			Errors:  vErr.Fields,
		})
	}
	switch {
	case errors.Is(err, errs.ErrBookUnavailable), errors.Is(err, errs.ErrAlreadyBorrowed):
		return echo.NewHTTPError(http.StatusBadRequest, errs.ValidationErrorResponse{
			Message: err.Error(),
			Errors:  map[string]string{"book_id": err.Error()},
		})
	case errors.Is(err, errs.ErrAlreadyReturned):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrUnauthorized), errors.Is(err, errs.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, errs.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	h.log.Error("internal error", zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, msgInternal)
}

func bindValid(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		if fields, ok := validate.Fields(err); ok {
			return echo.NewHTTPError(http.StatusBadRequest, errs.ValidationErrorResponse{
				Message: msgValidation,
				Errors:  fields,
			})
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "id is invalid")
	}
	return id, nil
}

func queryPaging(c echo.Context) (model.Paging, error) {
	var (
		paging model.Paging
		err    error
	)
	if pageParam := c.QueryParam("page"); pageParam != "" {
		if paging.Page, err = strconv.Atoi(pageParam); err != nil {
			return model.Paging{}, echo.NewHTTPError(http.StatusBadRequest, "page is invalid")
		}
	}
	if sizeParam := c.QueryParam("size"); sizeParam != "" {
		if paging.PageSize, err = strconv.Atoi(sizeParam); err != nil {
			return model.Paging{}, echo.NewHTTPError(http.StatusBadRequest, "size is invalid")
		}
	}
	return paging, nil
}

func queryInt64(c echo.Context, name string) (*int64, error) {
	param := c.QueryParam(name)
	if param == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(param, 10, 64)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, name+" is invalid")
	}
	return &v, nil
}
