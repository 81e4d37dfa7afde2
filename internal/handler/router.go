package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// RouterConfig holds the handlers and optional features mounted by NewRouter.
type RouterConfig struct {
	Jobs     *JobHandler
	Payments *PaymentHandler

	// StaticDir is served under /static when set.
	StaticDir string
	// SubmitLimiter guards the job submission routes when set.
	SubmitLimiter echo.MiddlewareFunc
}

// NewRouter builds the echo instance with middleware and routes.
func NewRouter(cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = HTTPErrorHandler
	e.Validator = NewAppValidator()

	e.Use(middleware.RequestID())
	e.Use(RequestLogger())
	e.Use(middleware.Recover())

	e.GET("/health", func(c echo.Context) error {
		return JSON(c, http.StatusOK, map[string]string{"status": "ok"})
	})

	submit := []echo.MiddlewareFunc{}
	if cfg.SubmitLimiter != nil {
		submit = append(submit, cfg.SubmitLimiter)
	}

	e.POST("/generate-verdict", cfg.Jobs.GenerateVerdict, submit...)
	e.POST("/generate-verdict-image", cfg.Jobs.GenerateVerdictImage, submit...)
	e.POST("/get-image-url", cfg.Jobs.GetImageURL)
	e.GET("/jobs/:id", cfg.Jobs.GetJob)

	e.POST("/create-checkout-session", cfg.Payments.CreateCheckoutSession, submit...)
	e.GET("/success", cfg.Payments.Success)
	e.GET("/cancel", cfg.Payments.Cancel)
	e.POST("/webhook", cfg.Payments.Webhook)

	if cfg.StaticDir != "" {
		e.Static("/static", cfg.StaticDir)
	}

	return e
}
