package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/auth"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/purchase"
	"github.com/trezcool/elimu/core/quiz"
	appfs "github.com/trezcool/elimu/fs"
	backendsvc "github.com/trezcool/elimu/services/backend"
	emailsvc "github.com/trezcool/elimu/services/email"
	eventsvc "github.com/trezcool/elimu/services/events"
	logsvc "github.com/trezcool/elimu/services/logger"
	"github.com/trezcool/elimu/storage/kv"
)

var logger *log.Logger

func main() {
	os.Exit(start())
}

func start() int {
	logger = log.New(os.Stderr, "CLI : ", log.LstdFlags|log.Lshortfile)

	conf := core.NewConfig()
	if conf.Store.Engine == "" || conf.Store.Engine == "memory" {
		// the session and the draft must outlive the process
		conf.Store.Engine = "sqlite3"
		conf.Store.DSN = defaultDBPath()
	}
	appLogger := logsvc.NewRollbarLogger(logger, conf)
	appLogger.Enable(!conf.Debug)
	defer appLogger.Close()

	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	core.ParseEmailTemplates(appfs.FS, false, appLogger)

	// set up store
	store, closer, err := kv.Open(context.Background(), conf)
	errAndDie(err)
	defer closer.Close()
	db, _ := closer.(*sqlx.DB)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, appLogger)
	}

	// without a message bus, checkouts end when the payment page is closed
	var events purchase.Events
	if conf.Events.AMQPURL != "" {
		bus, err := eventsvc.NewAMQPBus(conf, appLogger)
		errAndDie(err)
		defer bus.Close()
		events = bus
	}

	client := backendsvc.NewClient(conf)

	// start CLI
	cli := commandLine{
		conf:       conf,
		logger:     appLogger,
		db:         db,
		auth:       auth.NewStore(store, appLogger),
		drafts:     course.NewDraftStore(store, course.DraftKey, appLogger),
		catalogSvc: catalog.NewService(client, appLogger),
		quizSvc:    quiz.NewService(client, mailSvc, conf, appLogger),
		courseSvc:  course.NewService(client, client, validate, translator, appLogger),
		flow:       purchase.NewFlow(client, nil, events, conf, appLogger),
		in:         os.Stdin,
		out:        os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		return 1
	}
	return 0
}

// defaultDBPath returns the database kept in the user's config directory.
func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	errAndDie(err)
	dir = filepath.Join(dir, "elimu")
	errAndDie(os.MkdirAll(dir, 0o700))
	return filepath.Join(dir, "elimu.db")
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
