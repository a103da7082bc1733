package handler

import (
	"net/http"
	"time"

	"github.com/Astemirdum/library-management/library/internal/model"
	"github.com/Astemirdum/library-management/pkg/auth"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	msgRegistered      = "User registered successfully"
	msgLoggedIn        = "Login successful"
	msgLoggedOut       = "Logout successful"
	msgPasswordChanged = "Password changed successfully"
	msgInvalidToken    = "Token is invalid or expired"
)

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) Register(c echo.Context) error {
	var req model.RegisterRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	acc, err := h.accountSvc.Register(c.Request().Context(), req)
	if err != nil {
		return h.httpError(err)
	}
	tokens, err := h.tokens.Issue(acc.Profile())
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, model.AuthResponse{User: acc, Tokens: tokens, Message: msgRegistered})
}

func (h *Handler) Login(c echo.Context) error {
	var req model.LoginRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	acc, err := h.accountSvc.Authenticate(c.Request().Context(), req)
	if err != nil {
		return h.httpError(err)
	}
	tokens, err := h.tokens.Issue(acc.Profile())
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, model.AuthResponse{User: acc, Tokens: tokens, Message: msgLoggedIn})
}

// Logout revokes the presented access token and, when given, the refresh token.
func (h *Handler) Logout(c echo.Context) error {
	var req model.LogoutRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	who := identity(c)

	if req.Refresh != "" {
		claims, err := h.tokens.Parse(req.Refresh, auth.RefreshToken)
		if err != nil || claims.Profile.AccountID != who.AccountID {
			return echo.NewHTTPError(http.StatusBadRequest, msgInvalidToken)
		}
		if err := h.denylist.Revoke(ctx, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
			return h.httpError(err)
		}
	}
	if who.TokenID != "" {
		if err := h.denylist.Revoke(ctx, who.TokenID, time.Until(who.ExpiresAt)); err != nil {
			return h.httpError(err)
		}
	}
	h.log.Debug("logout", zap.Int64("account_id", who.AccountID))
	return c.JSON(http.StatusOK, messageResponse{Message: msgLoggedOut})
}

func (h *Handler) Refresh(c echo.Context) error {
	var req model.RefreshRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	claims, err := h.tokens.Parse(req.Refresh, auth.RefreshToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, msgInvalidToken)
	}
	revoked, err := h.denylist.IsRevoked(c.Request().Context(), claims.ID)
	if err != nil {
		return h.httpError(err)
	}
	if revoked {
		return echo.NewHTTPError(http.StatusUnauthorized, msgInvalidToken)
	}
	access, err := h.tokens.IssueAccess(claims.Profile)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, model.AccessResponse{Access: access})
}

func (h *Handler) Profile(c echo.Context) error {
	acc, err := h.accountSvc.Profile(c.Request().Context(), identity(c))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, acc)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	var req model.UpdateProfileRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	acc, err := h.accountSvc.UpdateProfile(c.Request().Context(), identity(c), req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, acc)
}

func (h *Handler) ChangePassword(c echo.Context) error {
	var req model.ChangePasswordRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := h.accountSvc.ChangePassword(c.Request().Context(), identity(c), req); err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: msgPasswordChanged})
}

func (h *Handler) AccountStats(c echo.Context) error {
	stats, err := h.accountSvc.AccountStats(c.Request().Context(), identity(c))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) ListAccounts(c echo.Context) error {
	paging, err := queryPaging(c)
	if err != nil {
		return err
	}
	list, err := h.accountSvc.ListAccounts(c.Request().Context(), identity(c), paging)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) GetAccount(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	acc, err := h.accountSvc.GetAccount(c.Request().Context(), identity(c), id)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, acc)
}

func (h *Handler) UpdateAccount(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req model.UpdateAccountRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	acc, err := h.accountSvc.UpdateAccount(c.Request().Context(), identity(c), id, req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, acc)
}

func (h *Handler) DeleteAccount(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.accountSvc.DeleteAccount(c.Request().Context(), identity(c), id); err != nil {
		return h.httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
