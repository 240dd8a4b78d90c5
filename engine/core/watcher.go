package core

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher reloads a TOML config file whenever it changes on disk and
// publishes the new configuration. Invalid files are logged and ignored so
// the last good configuration stays active.
type ConfigWatcher struct {
	path     string
	fsnotify *fsnotify.Watcher
	updates  chan *Config
	done     chan struct{}
	wg       sync.WaitGroup

	mutex    sync.Mutex
	isClosed bool
}

func NewConfigWatcher(path string) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors often replace the file instead of writing it.
	if err := fsWatch.Add(filepath.Dir(abs)); err != nil {
		fsWatch.Close()
		return nil, err
	}

	cw := &ConfigWatcher{
		path:     abs,
		fsnotify: fsWatch,
		updates:  make(chan *Config, 1),
		done:     make(chan struct{}),
	}
	cw.wg.Add(1)
	go cw.start()
	return cw, nil
}

// Updates delivers reloaded configurations. Only the newest pending reload is kept.
func (cw *ConfigWatcher) Updates() <-chan *Config {
	return cw.updates
}

func (cw *ConfigWatcher) Close() error {
	cw.mutex.Lock()
	if cw.isClosed {
		cw.mutex.Unlock()
		return errors.New("config watcher already closed")
	}
	cw.isClosed = true
	cw.mutex.Unlock()

	close(cw.done)
	cw.wg.Wait()
	return cw.fsnotify.Close()
}

func (cw *ConfigWatcher) start() {
	defer cw.wg.Done()
	for {
		select {
		case e, ok := <-cw.fsnotify.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != cw.path {
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			cfg, err := LoadConfig(cw.path)
			if err != nil {
				LogError("config reload rejected: %s", err)
				continue
			}
			cw.publish(cfg)

		case err, ok := <-cw.fsnotify.Errors:
			if !ok {
				return
			}
			LogError("%s", err)

		case <-cw.done:
			return
		}
	}
}

func (cw *ConfigWatcher) publish(cfg *Config) {
	// drop a stale pending update in favour of the new one
	select {
	case <-cw.updates:
	default:
	}
	select {
	case cw.updates <- cfg:
	default:
	}
	LogInfo("config reloaded from %s", cw.path)
}
