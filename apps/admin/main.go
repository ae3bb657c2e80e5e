package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/ibca/academic/core"
	"github.com/ibca/academic/core/course"
	"github.com/ibca/academic/core/student"
	"github.com/ibca/academic/core/user"
	emailsvc "github.com/ibca/academic/services/email"
	"github.com/ibca/academic/storage/database"
	sqlxrepos "github.com/ibca/academic/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	// set up services
	tx := database.NewTransactor(db)
	usrRepo := sqlxrepos.NewUserRepository(db)
	courseSvc := course.NewService(sqlxrepos.NewCourseRepository(db))

	// start CLI
	cli := commandLine{
		db:         db.DB,
		out:        os.Stdout,
		usrRepo:    usrRepo,
		usrSvc:     user.NewService(usrRepo, emailsvc.NewConsoleService(conf), conf),
		studentSvc: student.NewService(tx, sqlxrepos.NewStudentRepository(db), courseSvc, conf),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		closeAndExit(db.DB, 1)
	}
}

func closeAndExit(db *sql.DB, code int) {
	_ = db.Close()
	os.Exit(code)
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
