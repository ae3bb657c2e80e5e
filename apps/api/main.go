package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/ibca/academic/apps/api/echo"
	"github.com/ibca/academic/core"
	"github.com/ibca/academic/core/course"
	"github.com/ibca/academic/core/homework"
	"github.com/ibca/academic/core/site"
	"github.com/ibca/academic/core/student"
	"github.com/ibca/academic/core/upload"
	"github.com/ibca/academic/core/user"
	appfs "github.com/ibca/academic/fs"
	emailsvc "github.com/ibca/academic/services/email"
	logsvc "github.com/ibca/academic/services/logger"
	visitsvc "github.com/ibca/academic/services/visits"
	"github.com/ibca/academic/storage/database"
	inmemdb "github.com/ibca/academic/storage/database/inmem"
	sqlxrepos "github.com/ibca/academic/storage/database/sqlx"
	filestore "github.com/ibca/academic/storage/files"
)

const memoryEngine = "memory"

// repositories groups the storage backends of every service.
type repositories struct {
	tx       core.Transactor
	users    user.Repository
	courses  course.Repository
	students student.Repository
	homework homework.Repository
	site     site.Repository
	close    func() error
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	repos, err := setUpRepositories(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = repos.close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up file storage & analytics
	files, err := setUpFileStore(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up file storage: %v", err), err)
	}
	visits := setUpVisitCounter(conf, logger)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	policies := upload.PoliciesFromConfig(conf.Upload)

	courseSvc := course.NewService(repos.courses)
	studentSvc := student.NewService(repos.tx, repos.students, courseSvc, conf)
	usrSvc := user.NewService(repos.users, mailSvc, conf)
	homeworkSvc := homework.NewService(homework.ServiceDeps{
		Tx:       repos.tx,
		Repo:     repos.homework,
		Courses:  courseSvc,
		Students: studentSvc,
		Files:    files,
		MailSvc:  mailSvc,
		Logger:   logger,
		Policy:   policies.Homework,
		Conf:     conf,
	})
	siteSvc := site.NewService(repos.site, files, visits, courseSvc, studentSvc, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	student.InitValidators(validate, translator, conf.Student.MinPasswordLength)
	homework.InitValidators(validate, translator)

	if err = core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, !conf.Debug); err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("database").Set(conf.Database.Engine)
	expvar.NewString("uploads").Set(conf.Upload.Backend)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:        conf,
		Logger:      logger,
		Validate:    validate,
		Translator:  translator,
		UserSvc:     usrSvc,
		StudentSvc:  studentSvc,
		CourseSvc:   courseSvc,
		HomeworkSvc: homeworkSvc,
		SiteSvc:     siteSvc,
		Files:       files,
		Policies:    policies,
	})

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpRepositories opens postgres (creating and migrating it when needed), or an in-memory store
// when the database engine is "memory".
func setUpRepositories(conf *core.Config) (*repositories, error) {
	if conf.Database.Engine == memoryEngine {
		db := inmemdb.Open()
		return &repositories{
			tx:       db.Transactor(),
			users:    inmemdb.NewUserRepository(db),
			courses:  inmemdb.NewCourseRepository(db),
			students: inmemdb.NewStudentRepository(db),
			homework: inmemdb.NewHomeworkRepository(db),
			site:     inmemdb.NewSiteRepository(db),
			close:    func() error { return nil },
		}, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &repositories{
		tx:       database.NewTransactor(db),
		users:    sqlxrepos.NewUserRepository(db),
		courses:  sqlxrepos.NewCourseRepository(db),
		students: sqlxrepos.NewStudentRepository(db),
		homework: sqlxrepos.NewHomeworkRepository(db),
		site:     sqlxrepos.NewSiteRepository(db),
		close:    db.Close,
	}, nil
}

func setUpFileStore(conf *core.Config) (core.FileStore, error) {
	switch conf.Upload.Backend {
	case "b2":
		return filestore.NewB2Store(
			context.Background(),
			conf.Upload.B2AccountID,
			conf.Upload.B2AppKey,
			conf.Upload.B2Bucket,
			conf.Upload.BaseURL,
		)
	case "disk", "":
		return filestore.NewDiskStore(conf.Upload.Dir, conf.Upload.BaseURL)
	}
	return nil, fmt.Errorf("unknown upload backend %q", conf.Upload.Backend)
}

// setUpVisitCounter uses redis when configured and reachable; counts are kept in memory otherwise.
func setUpVisitCounter(conf *core.Config, logger core.Logger) core.VisitCounter {
	if conf.Redis.Address == "" {
		return visitsvc.NewMemCounter()
	}
	rdb := visitsvc.NewRedisClient(conf)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Warn(fmt.Sprintf("redis unreachable, counting visits in memory: %v", err), err)
		return visitsvc.NewMemCounter()
	}
	return visitsvc.NewRedisCounter(rdb)
}
