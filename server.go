package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// HTTPServer служебный HTTP: проверка живости и метрики
type HTTPServer struct {
	echo   *echo.Echo
	addr   string
	logger *logrus.Logger
}

func NewHTTPServer(addr string, metrics *Metrics, logger *logrus.Logger) *HTTPServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	return &HTTPServer{echo: e, addr: addr, logger: logger}
}

func (s *HTTPServer) Start() {
	s.logger.Printf("HTTP-сервер запущен на %s", s.addr)
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Errorf("Ошибка HTTP-сервера: %v", err)
	}
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
