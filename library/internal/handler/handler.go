package handler

import (
	"net/http"

	_ "github.com/Astemirdum/library-management/library/docs"
	"github.com/Astemirdum/library-management/library/internal/metrics"
	"github.com/Astemirdum/library-management/pkg/auth"
	md "github.com/Astemirdum/library-management/pkg/middleware"
	"github.com/Astemirdum/library-management/pkg/validate"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"
)

type Handler struct {
	accountSvc AccountService
	bookSvc    BookService
	loanSvc    LoanService
	tokens     *auth.TokenManager
	denylist   auth.Denylist
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	log        *zap.Logger
}

type Option func(h *Handler)

// WithMetrics instruments the api routes and serves gatherer on /manage/metrics.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(h *Handler) {
		h.metrics = m
		h.gatherer = gatherer
	}
}

func New(
	accountSvc AccountService,
	bookSvc BookService,
	loanSvc LoanService,
	tokens *auth.TokenManager,
	denylist auth.Denylist,
	log *zap.Logger,
	opts ...Option,
) *Handler {
	h := &Handler{
		accountSvc: accountSvc,
		bookSvc:    bookSvc,
		loanSvc:    loanSvc,
		tokens:     tokens,
		denylist:   denylist,
		log:        log.Named("handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.denylist == nil {
		h.denylist = auth.NewNopDenylist()
	}
	return h
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)
	base.GET("/swagger/*", echoSwagger.WrapHandler)
	if h.gatherer != nil {
		base.GET("/manage/metrics", echo.WrapHandler(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}

	e.Validator = validate.NewCustomValidator()

	mws := []echo.MiddlewareFunc{
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig(h.log)),
		middleware.RequestID(),
		md.NewRateLimiter(apiRPS),
	}
	if h.metrics != nil {
		mws = append(mws, h.metrics.Middleware())
	}
	api := e.Group("/api/v1", mws...)

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/token/refresh", h.Refresh)

	api.GET("/books", h.ListBooks)
	api.GET("/books/stats", h.BookStats)
	api.GET("/books/categories", h.Categories)
	api.GET("/books/:id", h.GetBook)

	authed := api.Group("", md.JwtAuthentication(h.tokens, h.denylist))

	authed.POST("/auth/logout", h.Logout)
	authed.GET("/auth/profile", h.Profile)
	authed.PATCH("/auth/profile", h.UpdateProfile)
	authed.POST("/auth/change-password", h.ChangePassword)
	authed.GET("/auth/stats", h.AccountStats)
	authed.GET("/auth/users", h.ListAccounts)
	authed.GET("/auth/users/:id", h.GetAccount)
	authed.PATCH("/auth/users/:id", h.UpdateAccount)
	authed.DELETE("/auth/users/:id", h.DeleteAccount)

	authed.POST("/books", h.CreateBook)
	authed.PATCH("/books/:id", h.UpdateBook)
	authed.DELETE("/books/:id", h.DeleteBook)

	authed.GET("/loans", h.ListLoans)
	authed.GET("/loans/my-loans", h.MyLoans)
	authed.GET("/loans/stats", h.LoanStats)
	authed.POST("/loans/borrow", h.Borrow)
	authed.POST("/loans/calculate-fines", h.CalculateOverdueFines)
	authed.GET("/loans/:id", h.GetLoan)
	authed.PATCH("/loans/:id", h.UpdateLoan)
	authed.DELETE("/loans/:id", h.DeleteLoan)
	authed.POST("/loans/:id/return", h.Return)
	authed.POST("/loans/:id/calculate-fine", h.CalculateFine)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// identity is the caller set by the jwt middleware; zero on public routes.
func identity(c echo.Context) auth.Identity {
	who, _ := auth.GetIdentity(c.Request().Context()) //nolint:errcheck
	return who
}
