package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/purchase"
	"github.com/trezcool/elimu/core/quiz"
	"github.com/trezcool/elimu/services/events"
)

type ServerDeps struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Store      core.KVStore
	QuizSvc    *quiz.Service
	Sessions   *quiz.Manager
	CourseSvc  *course.Service
	CatalogSvc *catalog.Service
	Purchases  *purchase.Flow
	Publisher  eventsvc.Publisher
}

type Server struct {
	*http.Server
	app       *echo.Echo
	deps      ServerDeps
	checkouts *checkouts
	errors    chan error
	shutdown  chan os.Signal
}

func NewServer(deps ServerDeps) *Server {
	app := echo.New()
	s := &Server{
		Server: &http.Server{
			Addr:    deps.Conf.Server.Host,
			Handler: app,
		},
		app:       app,
		deps:      deps,
		checkouts: newCheckouts(),
		errors:    make(chan error, 1),
		shutdown:  make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(metricsMiddleware)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.signalShutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", s.home)

	g := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf, "header:"+echo.HeaderAuthorization))
	optionalJWT := middleware.JWTWithConfig(newOptionalJWTConfig(conf))
	wsJWT := middleware.JWTWithConfig(newJWTConfig(conf, "query:token"))

	registerCatalogAPI(g, jwt, optionalJWT, s.deps.CatalogSvc)
	registerQuizAPI(g, jwt, wsJWT, s.deps)
	registerDraftAPI(g, jwt, s.deps)
	registerPurchaseAPI(g, jwt, s.deps, s.checkouts)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, fmt.Sprintf("Welcome to %s API!", s.deps.Conf.AppName))
}

// Start listens until the server is shut down. Listening errors are sent to Errors.
func (s *Server) Start() {
	s.deps.Logger.Info(fmt.Sprintf("API listening on %s", s.Addr))
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

// Shutdown stops the running checkouts and quiz timers, then gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.checkouts.stop()
	s.deps.Sessions.Close()
	signal.Stop(s.shutdown)
	return s.Server.Shutdown(ctx)
}

func (s *Server) Close() error {
	s.checkouts.stop()
	s.deps.Sessions.Close()
	return s.Server.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}
