package config

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher reloads a configuration file whenever it is rewritten.
type Watcher struct {
	// cfgFile is the cleaned path of the watched file
	cfgFile string

	// changes receives every successfully reloaded configuration
	changes chan *Config

	// done is closed when the watcher is going away
	done chan struct{}

	logger *logrus.Entry
	w      *fsnotify.Watcher
	wg     sync.WaitGroup
	once   sync.Once
}

// NewWatcher starts watching configFile. Callers must drain Changes.
func NewWatcher(logger *logrus.Entry, configFile string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	cfgFile := filepath.Clean(configFile)
	if err = fw.Add(filepath.Dir(cfgFile)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch config directory: %w", err)
	}

	w := &Watcher{
		cfgFile: cfgFile,
		changes: make(chan *Config, 1),
		done:    make(chan struct{}),
		logger:  logger,
		w:       fw,
	}

	w.wg.Add(1)
	go w.run()

	return w, nil
}

// Changes returns the channel reloaded configurations are sent on. It is
// closed once the watcher stops.
func (w *Watcher) Changes() <-chan *Config {
	return w.changes
}

// Close stops watching and waits for the watcher to finish.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.w.Close()
		w.wg.Wait()
	})

	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()
	defer close(w.changes)

	for {
		select {
		case evt, ok := <-w.w.Events:
			if !ok {
				return
			}

			// Ignore events for other files.
			if filepath.Clean(evt.Name) != w.cfgFile {
				continue
			}

			// We only care about when the config file has been rewritten.
			if evt.Op&fsnotify.Write != fsnotify.Write {
				continue
			}

			c, err := NewConfigFromFile(w.cfgFile)
			if err != nil {
				// Rewriting a file truncates it first, and the first write
				// event can see it empty.
				if !errors.Is(err, io.EOF) {
					w.logger.
						WithError(err).
						Error("error reloading config")
				}

				continue
			}

			select {
			case w.changes <- c:
			case <-w.done:
				return
			}

		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			w.logger.
				WithError(err).
				Error("error watching files")

		case <-w.done:
			return
		}
	}
}
