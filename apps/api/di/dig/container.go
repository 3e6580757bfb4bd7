package dig_container

import (
	"context"
	"io"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/BISHOP-X/BABCOCK-VPL/apps/api/echo"
	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
	"github.com/BISHOP-X/BABCOCK-VPL/core/lab"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
	cachesvc "github.com/BISHOP-X/BABCOCK-VPL/services/cache"
	emailsvc "github.com/BISHOP-X/BABCOCK-VPL/services/email"
	eventsvc "github.com/BISHOP-X/BABCOCK-VPL/services/events"
	logsvc "github.com/BISHOP-X/BABCOCK-VPL/services/logger"
	"github.com/BISHOP-X/BABCOCK-VPL/storage/database"
	boltdb "github.com/BISHOP-X/BABCOCK-VPL/storage/database/bolt"
	dummydb "github.com/BISHOP-X/BABCOCK-VPL/storage/database/dummy"
	sqlxrepos "github.com/BISHOP-X/BABCOCK-VPL/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// ClosersParam collects everything to release on shutdown. Disabled integrations add nil.
type ClosersParam struct {
	dig.In
	Closers []io.Closer `group:"closers"`
}

// Stores are the repositories of the configured storage driver.
type Stores struct {
	dig.Out
	Users   user.Repository
	Courses course.Repository
	Labs    lab.Repository
	Closer  io.Closer `group:"closers"`
}

type statsCacheResult struct {
	dig.Out
	Cache  lab.StatsCache
	Closer io.Closer `group:"closers"`
}

type eventsResult struct {
	dig.Out
	Events lab.EventPublisher
	Closer io.Closer `group:"closers"`
}

type labParams struct {
	dig.In
	Conf    *core.Config
	Logger  core.Logger
	Repo    lab.Repository
	Courses course.Repository
	Users   user.Repository
	Cache   lab.StatsCache
	Events  lab.EventPublisher
	Mailer  core.EmailService
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newStores(conf *core.Config, loggerParam DBLoggerParam) (Stores, error) {
	logger := loggerParam.Logger

	switch conf.Storage.Driver {
	case core.StorageMemory:
		logger.Warn("using the in-memory store: data is lost on restart")
		db, err := dummydb.Open()
		if err != nil {
			return Stores{}, err
		}
		return Stores{
			Users:   dummydb.NewUserRepository(db),
			Courses: dummydb.NewCourseRepository(db),
			Labs:    dummydb.NewLabRepository(db),
			Closer:  db,
		}, nil

	case core.StorageBolt:
		logger.Info("opening bolt store at " + conf.Storage.BoltPath)
		store, err := boltdb.Open(conf.Storage.BoltPath)
		if err != nil {
			return Stores{}, err
		}
		return Stores{
			Users:   boltdb.NewUserRepository(store),
			Courses: boltdb.NewCourseRepository(store),
			Labs:    boltdb.NewLabRepository(store),
			Closer:  store,
		}, nil

	case core.StoragePostgres, "":
		if err := database.CreateIfNotExist(conf); err != nil {
			return Stores{}, errors.Wrap(err, "setting up database")
		}
		sqlDB, err := database.Open(conf)
		if err != nil {
			return Stores{}, err
		}
		if err = database.Migrate(context.Background(), sqlDB); err != nil {
			_ = sqlDB.Close()
			return Stores{}, err
		}
		logger.Info("database ready at " + conf.Database.Address())

		db := sqlxrepos.NewDB(sqlDB)
		return Stores{
			Users:   sqlxrepos.NewUserRepository(db),
			Courses: sqlxrepos.NewCourseRepository(db),
			Labs:    sqlxrepos.NewLabRepository(db),
			Closer:  db,
		}, nil
	}
	return Stores{}, errors.Errorf("unknown storage driver %q", conf.Storage.Driver)
}

func newStatsCache(conf *core.Config) statsCacheResult {
	if conf.Redis.Addr == "" {
		return statsCacheResult{}
	}
	client := cachesvc.NewClient(conf)
	return statsCacheResult{
		Cache:  cachesvc.NewRedisStatsCache(client, conf.Redis.StatsTTL),
		Closer: client,
	}
}

func newEventPublisher(conf *core.Config, logger core.Logger) eventsResult {
	if len(conf.Kafka.Brokers) == 0 {
		return eventsResult{}
	}
	writer := eventsvc.NewWriter(conf, logger)
	return eventsResult{
		Events: eventsvc.NewKafkaPublisher(writer, conf.Kafka.Topic),
		Closer: writer,
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, log.New(os.Stdout, "", 0), logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	course.InitValidators(validate, translator)
	return validate
}

func newLabService(p labParams) lab.Service {
	return lab.NewService(lab.Deps{
		Repo:            p.Repo,
		Courses:         p.Courses,
		Users:           p.Users,
		Cache:           p.Cache,
		Events:          p.Events,
		Mailer:          p.Mailer,
		Logger:          p.Logger,
		Policy:          lab.PolicyFromConfig(p.Conf),
		FrontendBaseURL: p.Conf.FrontendBaseURL,
	})
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
	usrSvc user.Service,
	crsSvc course.Service,
	labSvc lab.Service,
) *echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		UserSvc:    usrSvc,
		CourseSvc:  crsSvc,
		LabSvc:     labSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStores))
	must(c.Provide(newStatsCache))
	must(c.Provide(newEventPublisher))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(user.NewService))
	must(c.Provide(course.NewService))
	must(c.Provide(newLabService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
