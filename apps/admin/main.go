package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mothercare/core"
	"github.com/trezcool/mothercare/core/session"
	"github.com/trezcool/mothercare/services/cms"
	"github.com/trezcool/mothercare/storage/database"
	"github.com/trezcool/mothercare/storage/kv"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	session.InitValidators(validate, translator)

	cli := commandLine{
		cms:      cms.NewClient(conf.CMS.BaseURL, nil),
		validate: validate,
		out:      os.Stdout,
	}

	// set up the session backend; migrations run on a bare connection
	var closeFn func() error
	switch backend := conf.Session.Backend; {
	case database.IsSQL(backend):
		db, err := database.Open(conf)
		errAndDie(err)
		cli.db, cli.sessions, closeFn = db, kv.NewSQL(db), db.Close
	case backend == core.SessionBackendRedis:
		store, c, err := kv.Open(context.Background(), conf)
		errAndDie(err)
		cli.sessions, closeFn = store.(kv.Inspector), c
	}

	err := cli.run(os.Args)
	if closeFn != nil {
		if cErr := closeFn(); cErr != nil {
			logger.Printf("closing session backend: %v", cErr)
		}
	}
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
