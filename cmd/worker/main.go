package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/keepsync/internal/worker"
	"github.com/dmitrijs2005/keepsync/internal/worker/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := worker.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}

}
