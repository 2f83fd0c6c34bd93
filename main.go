package main

import (
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/LilDemoness/mech-shooter-netcode/internal/game"
)

// parseFlags parses the supported flags and returns the values supplied to these flags.
func parseFlags(args []string) (config string, log string, mode string, logLevel string, standalone bool, backend string, err error) {
	dir, _ := os.UserHomeDir()
	f := flag.FlagSet{}

	f.StringVar(&config, "config", filepath.Join(dir, "netcode.json"), "path to the config file to use")
	f.StringVar(&log, "log", "", "path to the log directory to write to")
	f.StringVar(&mode, "mode", game.ModeHost, "whether to run as a host, client or server")
	f.StringVar(&logLevel, "loglevel", "info", "log level for the logger")
	f.BoolVar(&standalone, "standalone", false, "serve an in-memory session backend instead of using SessionBackendURL")
	f.StringVar(&backend, "backend", "127.0.0.1:8085", "address the standalone session backend listens on")
	err = f.Parse(args)

	return
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	config, log, mode, logLevel, standalone, backend, err := parseFlags(os.Args[1:])
	if err != nil {
		logger.WithError(err).Fatal("error parsing flags")
	}

	ll, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logger.WithError(err).Error("Couldn't parse log level, defaulting to info")
		ll = logrus.InfoLevel
	}

	logger.SetLevel(ll)

	if log != "" {
		logFile, err := os.OpenFile(filepath.Join(log, "netcode.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err == nil {
			defer logFile.Close()
			logger.Out = logFile
		} else {
			logger.WithError(err).Warning("could not open log file for writing")
		}
	}

	g, err := game.New(logger.WithField("process_id", os.Getpid()), config, game.Options{
		Mode:           mode,
		Standalone:     standalone,
		StandaloneAddr: backend,
	})
	if err != nil {
		logger.WithError(err).Fatal("error creating game")
	}

	if err = g.Start(); err != nil {
		logger.WithError(err).Fatal("unable to start game")
	}

	// A hosting daemon sends SIGTERM to stop a dedicated server gracefully.
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	g.Stop()
}
