// Command portal is a terminal client of the department website: it keeps an admin and a student
// session side by side and submits homework.
package main

import (
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ibca/academic/client"
	"github.com/ibca/academic/core"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stderr, "PORTAL : ", log.LstdFlags)
	conf := core.NewConfig()

	sessionFile := conf.Client.SessionFile
	if sessionFile == "" {
		dir, err := os.UserConfigDir()
		errAndDie(err)
		sessionFile = filepath.Join(dir, "academic", "session.db")
	}
	store, err := client.OpenBoltStore(sessionFile)
	errAndDie(err)

	cli := commandLine{
		out: os.Stdout,
		api: client.New(conf.Client.APIBaseURL, client.NewSession(store), &http.Client{Timeout: conf.Client.Timeout}),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("error: %s", err)
		}
		_ = store.Close()
		os.Exit(1)
	}
	_ = store.Close()
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
