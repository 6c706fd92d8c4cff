package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/trezcool/ilmlab/core"
	"github.com/trezcool/ilmlab/core/progress"
	logsvc "github.com/trezcool/ilmlab/services/logger"
	"github.com/trezcool/ilmlab/storage"
	"github.com/trezcool/ilmlab/storage/database"
	sqlxdb "github.com/trezcool/ilmlab/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZap("ADMIN", conf.Debug)
	if err != nil {
		log.Fatalf("setting up logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(false)
	defer logger.Sync()

	// set up store
	var db *sql.DB
	var store core.DocumentStore
	closeStore := func() error { return nil }

	if conf.DocumentStore == core.StoreSQL {
		// migrations are left to the migrate command
		errAndDie(logger, database.CreateIfNotExist(conf))
		sdb, err := database.Open(conf)
		errAndDie(logger, err)
		db, store, closeStore = sdb.DB, sqlxdb.NewDocumentStore(sdb, progress.FieldXP), sdb.Close
	} else {
		store, closeStore, err = storage.OpenDocumentStore(context.Background(), conf, progress.FieldXP)
		errAndDie(logger, err)
	}

	// start CLI
	cli := newCommandLine(conf, logger, db, store, os.Stdout)
	err = cli.run(os.Args)
	if cErr := closeStore(); cErr != nil {
		logger.Error("closing store", cErr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %s", err), err)
		}
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
