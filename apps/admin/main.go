package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/notify"
	"github.com/cadence/academy/core/training"
	"github.com/cadence/academy/core/user"
	emailsvc "github.com/cadence/academy/services/email"
	logsvc "github.com/cadence/academy/services/logger"
	"github.com/cadence/academy/storage/database"
	boiledrepos "github.com/cadence/academy/storage/database/sqlboiler"
	sqlxrepos "github.com/cadence/academy/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = database.Wait(context.Background(), db); err != nil {
		logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	usrRepo := boiledrepos.NewUserRepository(db)
	catalog := sqlxrepos.NewCatalogRepository(db)
	store := sqlxrepos.NewProgressRepository(db)
	eval := training.NewEvaluator(catalog, store, conf.Training.PassPercentage, nil)

	// start CLI
	cli := commandLine{
		conf:        conf,
		sqlDB:       db,
		db:          db,
		validate:    validate,
		usrRepo:     usrRepo,
		usrSvc:      user.NewService(db, usrRepo, notify.New(emailsvc.NewConsoleService(conf), conf, nil), conf),
		trainingSvc: training.NewService(catalog, store, sqlxrepos.NewAssessmentRepository(db), eval, logger),
		migrator:    training.NewMigrator(db, store, logger),
	}
	err = cli.run(os.Args[1:])
	_ = db.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		os.Exit(1)
	}
}
