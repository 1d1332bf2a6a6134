package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/koding/multiconfig"
	"github.com/nergy-se/controlkit/pkg/api/v1/config"
	"github.com/nergy-se/controlkit/pkg/app"
	"github.com/nergy-se/controlkit/pkg/version"
	"github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGQUIT, syscall.SIGTERM)
	defer stop()
	err := Run(ctx)
	if err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func Run(ctx context.Context) error {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error loading .env: %w", err)
	}

	config := &config.CliConfig{}
	err = multiconfig.New().Load(config)
	if err != nil {
		return err
	}
	lvl, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		return fmt.Errorf("error setting logrus loglevel: %w", err)
	}
	logrus.SetLevel(lvl)
	logrus.Infof("starting controlkit %s", version.Version)

	app := app.New(config)

	err = app.Start(ctx)
	if err != nil {
		return err
	}

	return app.Wait()
}
