package main

import (
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
	emailsvc "github.com/trezcool/masomo-fees/services/email"
	logsvc "github.com/trezcool/masomo-fees/services/logger"
	"github.com/trezcool/masomo-fees/storage/database"
	sqlxrepos "github.com/trezcool/masomo-fees/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB; connections are only made by the commands needing them
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(err.Error(), err)
	}

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	fee.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		conf:   conf,
		db:     db,
		feeSvc: fee.NewService(conf, sqlxrepos.NewFeeRepository(db), validate, emailsvc.NewConsoleService(conf, logger), logger),
		out:    os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("error: "+err.Error(), err)
		}
		os.Exit(1)
	}
}
