package dig_container

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/elimu/apps/api/echo"
	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/purchase"
	"github.com/trezcool/elimu/core/quiz"
	backendsvc "github.com/trezcool/elimu/services/backend"
	emailsvc "github.com/trezcool/elimu/services/email"
	eventsvc "github.com/trezcool/elimu/services/events"
	logsvc "github.com/trezcool/elimu/services/logger"
	objectsvc "github.com/trezcool/elimu/services/objects"
	"github.com/trezcool/elimu/storage/kv"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// BackendResult exposes the backend client under every role it plays.
type BackendResult struct {
	dig.Out
	Client   *backendsvc.Client
	Quizzes  quiz.Source
	Courses  course.Backend
	Catalog  catalog.Backend
	Payments purchase.QRCreator
}

type EventsResult struct {
	dig.Out
	Events    purchase.Events
	Publisher eventsvc.Publisher
}

type ServerParams struct {
	dig.In
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

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "STORE : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

// newStore opens the key/value store; the io.Closer must be closed on shutdown.
func newStore(conf *core.Config, loggerParam DBLoggerParam) (core.KVStore, io.Closer) {
	store, closer, err := kv.Open(context.Background(), conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up %s store: %v", conf.Store.Engine, err), err)
	}
	return store, closer
}

func newBackend(conf *core.Config) BackendResult {
	client := backendsvc.NewClient(conf)
	return BackendResult{
		Client:   client,
		Quizzes:  client,
		Courses:  client,
		Catalog:  client,
		Payments: client,
	}
}

// newImageUploader stores course images in the object store when one is configured,
// and through the backend otherwise.
func newImageUploader(conf *core.Config, logger core.Logger, client *backendsvc.Client) course.ImageUploader {
	if conf.Objects.Endpoint == "" {
		return client
	}
	store, err := objectsvc.NewImageStore(context.Background(), conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up object store: %v", err), err)
	}
	return store
}

// newEvents connects to RabbitMQ when configured; payment messages stay in process otherwise.
func newEvents(conf *core.Config, logger core.Logger) EventsResult {
	if conf.Events.AMQPURL == "" {
		broker := eventsvc.NewBroker()
		return EventsResult{Events: broker, Publisher: broker}
	}
	bus, err := eventsvc.NewAMQPBus(conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up payment events: %v", err), err)
	}
	return EventsResult{Events: bus, Publisher: bus}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newQuizManager(svc *quiz.Service, conf *core.Config) *quiz.Manager {
	m := quiz.NewManager(svc.SessionOptions()...)
	m.SetIdleTimeout(conf.Quiz.IdleTimeout)
	return m
}

func newPurchaseFlow(qr purchase.QRCreator, events purchase.Events, conf *core.Config, logger core.Logger) *purchase.Flow {
	// the API hands the payment page over to its clients
	return purchase.NewFlow(qr, nil, events, conf, logger)
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Validate:   p.Validate,
		Translator: p.Translator,
		Store:      p.Store,
		QuizSvc:    p.QuizSvc,
		Sessions:   p.Sessions,
		CourseSvc:  p.CourseSvc,
		CatalogSvc: p.CatalogSvc,
		Purchases:  p.Purchases,
		Publisher:  p.Publisher,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStore))
	must(c.Provide(newBackend))
	must(c.Provide(newImageUploader))
	must(c.Provide(newEvents))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(quiz.NewService))
	must(c.Provide(newQuizManager))
	must(c.Provide(course.NewService))
	must(c.Provide(catalog.NewService))
	must(c.Provide(newPurchaseFlow))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
