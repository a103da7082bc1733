package handler_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Astemirdum/library-management/library/internal/handler"
	"github.com/Astemirdum/library-management/library/internal/metrics"
	"github.com/Astemirdum/library-management/library/internal/model"
	"github.com/Astemirdum/library-management/pkg/auth"
	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	service_mocks "github.com/Astemirdum/library-management/library/internal/handler/mocks"
)

var (
	member = model.Account{ID: 7, Username: "reader", Email: "reader@example.com", Role: model.RoleUser}
	admin  = model.Account{ID: 1, Username: "librarian", Email: "admin@example.com", Role: model.RoleAdmin}
)

type fixture struct {
	accounts *service_mocks.MockAccountService
	books    *service_mocks.MockBookService
	loans    *service_mocks.MockLoanService
	tokens   *auth.TokenManager
	e        *echo.Echo
}

func newFixture(t *testing.T, denylist auth.Denylist, opts ...handler.Option) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		accounts: service_mocks.NewMockAccountService(ctrl),
		books:    service_mocks.NewMockBookService(ctrl),
		loans:    service_mocks.NewMockLoanService(ctrl),
		tokens: auth.NewTokenManager(auth.Config{
			Secret:     "test-secret",
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
		}),
	}
	h := handler.New(f.accounts, f.books, f.loans, f.tokens, denylist, zap.NewExample().Named("test"), opts...)
	f.e = h.NewRouter()
	return f
}

func (f *fixture) login(t *testing.T, acc model.Account) auth.TokenPair {
	t.Helper()
	pair, err := f.tokens.Issue(acc.Profile())
	require.NoError(t, err)
	return pair
}

func (f *fixture) do(method, target, body, token string) *httptest.ResponseRecorder {
	var rd io.Reader = http.NoBody
	if body != "" {
		rd = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, target, rd)
	r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		r.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.e.ServeHTTP(w, r)
	return w
}

func body(w *httptest.ResponseRecorder) string {
	return strings.Trim(w.Body.String(), "\n")
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

// caller matches the identity the jwt middleware built for account id.
type caller int64

func (m caller) Matches(x interface{}) bool {
	who, ok := x.(auth.Identity)
	return ok && who.AccountID == int64(m) && who.TokenID != ""
}

func (m caller) String() string {
	return fmt.Sprintf("identity of account %d", int64(m))
}

func TestHandler_Health(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	w := f.do(http.MethodGet, "/manage/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "OK", w.Body.String())
}

func TestHandler_Authentication(t *testing.T) {
	t.Parallel()
	type mockBehavior func(f *fixture)

	var tests = []struct {
		name         string
		token        func(f *fixture) string
		mockBehavior mockBehavior
		expectedCode int
		expectedBody string
	}{
		{
			name:         "err. no header",
			token:        func(*fixture) string { return "" },
			mockBehavior: func(*fixture) {},
			expectedCode: http.StatusUnauthorized,
			expectedBody: `{"message":"No Authorization Header"}`,
		},
		{
			name:         "err. garbage token",
			token:        func(*fixture) string { return "not-a-jwt" },
			mockBehavior: func(*fixture) {},
			expectedCode: http.StatusUnauthorized,
			expectedBody: `{"message":"JwtAccessDenied"}`,
		},
		{
			name: "err. refresh token as access",
			token: func(f *fixture) string {
				pair, err := f.tokens.Issue(member.Profile())
				if err != nil {
					panic(err)
				}
				return pair.Refresh
			},
			mockBehavior: func(*fixture) {},
			expectedCode: http.StatusUnauthorized,
			expectedBody: `{"message":"JwtAccessDenied"}`,
		},
		{
			name: "err. signed with another key",
			token: func(*fixture) string {
				other := auth.NewTokenManager(auth.Config{Secret: "other", AccessTTL: time.Hour, RefreshTTL: time.Hour})
				pair, err := other.Issue(member.Profile())
				if err != nil {
					panic(err)
				}
				return pair.Access
			},
			mockBehavior: func(*fixture) {},
			expectedCode: http.StatusUnauthorized,
			expectedBody: `{"message":"JwtAccessDenied"}`,
		},
		{
			name: "ok",
			token: func(f *fixture) string {
				pair, err := f.tokens.Issue(member.Profile())
				if err != nil {
					panic(err)
				}
				return pair.Access
			},
			mockBehavior: func(f *fixture) {
				f.accounts.EXPECT().
					Profile(gomock.Any(), caller(member.ID)).
					Return(model.AccountDetail{Account: model.Account{ID: member.ID, Username: member.Username}}, nil)
			},
			expectedCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, nil)
			tt.mockBehavior(f)

			w := f.do(http.MethodGet, "/api/v1/auth/profile", "", tt.token(f))

			require.Equal(t, tt.expectedCode, w.Code)
			if tt.expectedBody != "" {
				require.Equal(t, tt.expectedBody, body(w))
			}
		})
	}
}

func TestHandler_Metrics(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	f := newFixture(t, nil, handler.WithMetrics(m, reg))

	f.books.EXPECT().Categories(gomock.Any()).Return([]string{"fiction"}, nil)
	w := f.do(http.MethodGet, "/api/v1/books/categories", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/manage/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(),
		`library_http_requests_total{method="GET",route="/api/v1/books/categories",status="200"} 1`)
}
