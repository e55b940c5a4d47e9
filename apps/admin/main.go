package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/mrdawstar/LinguaLab-sub000/apps/shared"
	"github.com/mrdawstar/LinguaLab-sub000/core"
	logsvc "github.com/mrdawstar/LinguaLab-sub000/services/logger"
)

func main() {
	conf := core.NewConfig()

	logger, err := logsvc.New(conf)
	if err != nil {
		log.Fatal(err)
	}
	logger = logger.Named("admin")

	// set up DB; migrations are left to the migrate command
	stores, err := shared.OpenStores(context.Background(), conf, false)
	if err != nil {
		logger.Fatal("setting up database", err)
	}

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)

	// start CLI
	cli := commandLine{
		db:   stores.SQL,
		svcs: shared.NewServices(stores, validate, logger),
		out:  os.Stdout,
	}
	err = cli.run(os.Args)
	_ = stores.Close()
	logger.Sync()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
