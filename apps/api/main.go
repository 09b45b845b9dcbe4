package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	echoapi "github.com/trezcool/masomo-fees/apps/api/echo"
	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
	emailsvc "github.com/trezcool/masomo-fees/services/email"
	logsvc "github.com/trezcool/masomo-fees/services/logger"
	"github.com/trezcool/masomo-fees/storage/database"
	sqlxrepos "github.com/trezcool/masomo-fees/storage/database/sqlx"
)

const dbSetupTimeout = 30 * time.Second

func main() {
	conf := core.NewConfig()
	logger := newLogger("API", conf)

	if err := run(conf, logger); err != nil {
		logger.Fatal(err.Error(), err)
	}
}

// run serves the fee ledger API until the server fails or is asked to shut down.
func run(conf *core.Config, logger core.Logger) error {
	db, err := openLedgerDB(conf)
	if err != nil {
		return errors.Wrap(err, "setting up database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			newLogger("DB", conf).Error(fmt.Sprintf("closing database: %v", err), err)
		}
	}()

	translator := newTranslator()
	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		FeeSvc:     newFeeService(conf, db, translator, logger),
		Translator: translator,
	})

	logger.Info(fmt.Sprintf("fee ledger API %q listening on %s", conf.Build, conf.Server.Host))
	defer logger.Info("fee ledger API stopped")
	go server.Start()

	select {
	case err = <-server.Errors():
		return errors.Wrap(err, "server error")

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: shutting down", sig))

		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
			if err = server.Close(); err != nil {
				return errors.Wrap(err, "could not force stop server")
			}
		}
	}
	return nil
}

func newLogger(prefix string, conf *core.Config) *logsvc.RollbarLogger {
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, prefix+" : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	return logger
}

// openLedgerDB creates the database if needed and brings its schema up to date.
func openLedgerDB(conf *core.Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbSetupTimeout)
	defer cancel()

	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Ping(ctx, db); err == nil {
		err = database.Migrate(db.DB)
	}
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// newFeeService wires the ledger to Postgres. Receipts are printed in debug mode and sent through SendGrid otherwise.
func newFeeService(conf *core.Config, db *sqlx.DB, translator ut.Translator, logger core.Logger) *fee.Service {
	validate := validator.New()
	core.InitValidators(validate, translator)
	fee.InitValidators(validate, translator)

	mailSvc := emailsvc.NewSendgridService(conf, logger)
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	}
	return fee.NewService(conf, sqlxrepos.NewFeeRepository(db), validate, mailSvc, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	return translator
}
