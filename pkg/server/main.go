/* Copyright 2025 Folio Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/folioapp/folio/pkg/clock"
	"github.com/folioapp/folio/pkg/server/app"
	"github.com/folioapp/folio/pkg/server/blob"
	"github.com/folioapp/folio/pkg/server/config"
	"github.com/folioapp/folio/pkg/server/controllers"
	"github.com/folioapp/folio/pkg/server/database"
	"github.com/folioapp/folio/pkg/server/log"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var versionTag = "master"

func initDB(cfg config.Config) *gorm.DB {
	db := database.Open(cfg.DatabaseURL, cfg.DBPath)
	database.InitSchema(db)

	return db
}

func initApp(cfg config.Config) app.App {
	db := initDB(cfg)

	store, err := blob.NewS3Store(context.Background(), cfg)
	if err != nil {
		panic(errors.Wrap(err, "initializing blob store"))
	}

	return app.App{
		DB:     db,
		Clock:  clock.New(),
		Blob:   store,
		Config: cfg,
	}
}

func startCmd(args []string) {
	startFlags := flag.NewFlagSet("start", flag.ExitOnError)
	startFlags.Usage = func() {
		fmt.Printf(`Usage:
  folio-server start [flags]

Flags:
`)
		startFlags.PrintDefaults()
	}

	appEnv := startFlags.String("appEnv", "", "Application environment (env: APP_ENV, default: PRODUCTION)")
	port := startFlags.String("port", "", "Server port (env: PORT, default: 3001)")
	webURL := startFlags.String("webUrl", "", "Full URL to server without trailing slash (env: WebURL, example: https://example.com)")
	databaseURL := startFlags.String("databaseUrl", "", "Postgres connection string (env: DatabaseURL, empty: use SQLite)")
	dbPath := startFlags.String("dbPath", "", "Path to SQLite database file (env: DBPath, default: $XDG_DATA_HOME/folio/server.db)")
	jwtSecret := startFlags.String("jwtSecret", "", "Secret for signing session tokens (env: JWTSecret)")
	disableRegistration := startFlags.Bool("disableRegistration", false, "Disable user registration (env: DisableRegistration, default: false)")
	logLevel := startFlags.String("logLevel", "", "Log level: debug, info, warn, or error (env: LOG_LEVEL, default: info)")

	startFlags.Parse(args)

	// optional; environment variables take over when absent
	godotenv.Load()

	cfg, err := config.New(config.Params{
		AppEnv:              *appEnv,
		Port:                *port,
		WebURL:              *webURL,
		DatabaseURL:         *databaseURL,
		DBPath:              *dbPath,
		JWTSecret:           *jwtSecret,
		DisableRegistration: *disableRegistration,
		LogLevel:            *logLevel,
	})
	if err != nil {
		fmt.Printf("Error: %s\n\n", err)
		startFlags.Usage()
		os.Exit(1)
	}

	log.SetLevel(cfg.LogLevel)

	app := initApp(cfg)
	defer func() {
		sqlDB, err := app.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}()

	r, err := controllers.NewRouter(&app, controllers.New(&app))
	if err != nil {
		panic(errors.Wrap(err, "initializing router"))
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: r,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.WithFields(log.Fields{
			"version": versionTag,
			"port":    cfg.Port,
		}).Info("Folio server starting")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.ErrorWrap(err, "server failed")
			os.Exit(1)
		}
	}()

	<-done
	log.Info("Folio server stopping")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.ErrorWrap(err, "shutting down")
	}
}

func versionCmd() {
	fmt.Printf("folio-server-%s\n", versionTag)
}

func rootCmd() {
	fmt.Printf(`Folio server - sync service for your reading

Usage:
  folio-server [command] [flags]

Available commands:
  start: Start the server (use 'folio-server start --help' for flags)
  version: Print the version
`)
}

func main() {
	if len(os.Args) < 2 {
		rootCmd()
		return
	}

	cmd := os.Args[1]

	switch cmd {
	case "start":
		startCmd(os.Args[2:])
	case "version":
		versionCmd()
	default:
		fmt.Printf("Unknown command %s\n", cmd)
		rootCmd()
		os.Exit(1)
	}
}
