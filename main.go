package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/CodedInternet/matthieu/internal/log"
	"github.com/CodedInternet/matthieu/onboard"
	"github.com/CodedInternet/matthieu/onboard/journal"
	"github.com/CodedInternet/matthieu/onboard/restart"
	"github.com/CodedInternet/matthieu/onboard/session"
	"github.com/asdine/storm/v3"
	"github.com/caarlos0/env/v6"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
)

type EnvConfig struct {
	DEVICE_ID  string `env:"DEVICE_ID" envDefault:"DEV"`
	JWT_SECRET string `env:"JWT_SECRET" envDefault:"xWumOlRfhu+LBi2F2e1yF4FiaopQ5mr8klL4fpILnlI="`
	ONBOARD    bool   `env:"ONBOARD" envDefault:"0"`
	DEBUG      bool   `env:"DEBUG" envDefault:"0"`
	SRCDIR     string `env:"SRCDIR" envDefault:"."`
	LOG_LEVEL  string `env:"LOG_LEVEL" envDefault:"info"`
	DB         *storm.DB
	Device     *onboard.Device
	Control    *session.Server
	Journal    *journal.Journal
	Simulated  bool
}

var (
	ENV *EnvConfig
)

func init() {
	ENV = new(EnvConfig)
	if err := env.Parse(ENV); err != nil {
		panic(err)
	}
}

func main() {
	simulated := flag.Bool("sim", false, "Run the device against a simulated board")
	port := flag.String("port", "0.0.0.0:80", "Specify the ip:port for the admin API")
	configFile := flag.String("config", "", "Device config, defaults to matthieu.yaml in SRCDIR or /data onboard")
	flag.Parse()

	log.Init(ENV.LOG_LEVEL)

	// the db and config live on the persistent partition when onboard
	var dbFile, filename string
	if ENV.ONBOARD {
		dbFile = "/data/live.db"
		filename = "/data/matthieu.yaml"
	} else {
		dbFile, _ = filepath.Abs(filepath.Join(ENV.SRCDIR, "tmp", "dev.db"))
		filename, _ = filepath.Abs(filepath.Join(ENV.SRCDIR, "matthieu.yaml"))
		os.MkdirAll(filepath.Dir(dbFile), 0755)
	}
	if *configFile != "" {
		filename = *configFile
	}

	db, err := openDb(dbFile)
	if err != nil {
		panic(err)
	}
	ENV.DB = db
	defer ENV.DB.Close()

	config, err := onboard.LoadConfig(filename)
	if err != nil {
		panic(err)
	}

	ENV.Simulated = *simulated
	if ENV.Simulated {
		config.Board.Driver = "sim"
	}

	device, err := onboard.NewDevice(config)
	if err != nil {
		panic(err)
	}
	ENV.Device = device
	defer device.Close()

	log.Info("access point",
		"accesspoint", config.AccessPoint,
		"control", config.Control.Listen)

	ENV.Journal, err = journal.New(ENV.DB.From("sessions"))
	if err != nil {
		panic(err)
	}
	if removed, err := ENV.Journal.Prune(config.Journal.Keep); err != nil {
		log.Warn("unable to prune session journal", "err", err)
	} else if removed > 0 {
		log.Info("pruned session journal", "removed", removed)
	}

	// hooks run newest first: rest the outputs, then close the db
	restarter := restart.New()
	restarter.OnRestart(ENV.DB.Close)
	restarter.OnRestart(device.Close)

	ENV.Control = session.NewServer(device.Decoder, device.Machine, restarter, config.Control)
	ENV.Control.UseJournal(ENV.Journal)

	tcp, err := session.ListenTCP(config.Control.Listen)
	if err != nil {
		panic(err)
	}
	ws := session.NewWSListener()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !ENV.ONBOARD {
		go newShell(device, ENV.Journal, restarter).Start()
	}

	httpServer := &http.Server{
		Addr:    *port,
		Handler: newRouter(ws),
	}
	go func() {
		log.Info("admin API listening", "addr", *port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("admin API stopped", "err", err)
			stop()
		}
	}()

	err = ENV.Control.Serve(ctx, tcp, ws)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("control server stopped", "err", err)
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdown); err != nil {
		log.Warn("admin API shutdown", "err", err)
	}
	log.Info("stopped")
}

func newRouter(ws http.Handler) chi.Router {
	r := chi.NewRouter()

	// A good base middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Recoverer) // make sure this is last

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", Login)

		r.Group(func(r chi.Router) {
			// Seek, verify and validate JWT tokens
			r.Use(ValidateJWT)

			r.Get("/refresh_token", JWTRefresh)
			r.Get("/state", StateHandler)
			r.Get("/sessions", SessionsHandler)
			r.Get("/info", InfoHandler)
		})
	})

	r.Route("/ws", func(r chi.Router) {
		if !ENV.DEBUG {
			r.Use(ValidateJWT)
		} else {
			log.Warn("running in debug mode, websocket authentication disabled")
		}

		r.Handle("/control", ws)
	})

	return r
}

func openDb(dbFile string) (db *storm.DB, err error) {
	db, err = storm.Open(dbFile)
	if err != nil {
		return
	}

	// call inits for each type
	if err := db.Init(&User{}); err != nil {
		db.Close()
		return nil, err
	}

	return
}
