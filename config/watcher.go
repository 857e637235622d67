package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/teranos/warden/logger"
)

// CredentialsWatcher watches the credentials file for changes and triggers
// reload callbacks. This is what lets `warden auth` re-login while the daemon
// keeps running: the cloud client picks up the new refresh token without a
// restart.
type CredentialsWatcher struct {
	credentialsPath string
	watcher         *fsnotify.Watcher
	callbacks       []ReloadCallback
	mu              sync.RWMutex
	debounceTimer   *time.Timer
	debouncePeriod  time.Duration
	isOwnWrite      bool // Flag to prevent reload loops
	isOwnWriteMutex sync.Mutex
}

// ReloadCallback is called when credentials are reloaded
// Receives the new credentials and returns any error
type ReloadCallback func(*Credentials) error

// globalWatcher holds the singleton credentials watcher instance
var (
	globalWatcher   *CredentialsWatcher
	globalWatcherMu sync.Mutex
)

// NewCredentialsWatcher creates a new credentials file watcher.
// The parent directory is watched rather than the file itself, so the
// watcher survives the file being created after startup or replaced by
// rename (the common editor/save pattern).
func NewCredentialsWatcher(credentialsPath string) (*CredentialsWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	dir := filepath.Dir(credentialsPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch credentials directory %s: %w", dir, err)
	}

	cw := &CredentialsWatcher{
		credentialsPath: credentialsPath,
		watcher:         watcher,
		callbacks:       make([]ReloadCallback, 0),
		debouncePeriod:  500 * time.Millisecond, // Debounce rapid file changes
	}

	return cw, nil
}

// OnReload registers a callback to be called when credentials are reloaded
func (cw *CredentialsWatcher) OnReload(callback ReloadCallback) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

// MarkOwnWrite marks the next write as coming from us (prevents reload loops)
func (cw *CredentialsWatcher) MarkOwnWrite() {
	cw.isOwnWriteMutex.Lock()
	defer cw.isOwnWriteMutex.Unlock()
	cw.isOwnWrite = true
}

// checkOwnWrite checks and clears the own-write flag
func (cw *CredentialsWatcher) checkOwnWrite() bool {
	cw.isOwnWriteMutex.Lock()
	defer cw.isOwnWriteMutex.Unlock()

	if cw.isOwnWrite {
		cw.isOwnWrite = false
		return true
	}
	return false
}

// Start begins watching for credentials file changes
func (cw *CredentialsWatcher) Start() {
	go cw.watchLoop()
}

// watchLoop monitors file system events
func (cw *CredentialsWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}

			// Only care about the credentials file itself
			if filepath.Base(event.Name) != filepath.Base(cw.credentialsPath) {
				continue
			}

			// Only reload on Write or Create events
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				// Ignore backup files
				if isBackupFile(event.Name) {
					continue
				}

				// Check if this is our own write
				if cw.checkOwnWrite() {
					logger.Debugw("Credentials watcher ignoring own write",
						"file", event.Name)
					continue
				}

				logger.Infow("Credentials watcher detected change",
					"file", event.Name,
					"op", event.Op.String())
				cw.scheduleReload()
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnw("Credentials watcher error",
				"error", err)
		}
	}
}

// scheduleReload debounces rapid file changes and triggers reload
func (cw *CredentialsWatcher) scheduleReload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	// Cancel existing timer if any
	if cw.debounceTimer != nil {
		cw.debounceTimer.Stop()
	}

	// Schedule reload after debounce period
	cw.debounceTimer = time.AfterFunc(cw.debouncePeriod, func() {
		if err := cw.reload(); err != nil {
			logger.Errorw("Credentials reload failed",
				"error", err)
		}
	})
}

// reload reloads the credentials and calls all callbacks
func (cw *CredentialsWatcher) reload() error {
	newCreds, err := LoadCredentials(cw.credentialsPath)
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	logger.Infow("Credentials reloaded successfully",
		"path", cw.credentialsPath)

	// Call all registered callbacks
	cw.mu.RLock()
	callbacks := make([]ReloadCallback, len(cw.callbacks))
	copy(callbacks, cw.callbacks)
	cw.mu.RUnlock()

	for _, callback := range callbacks {
		if err := callback(newCreds); err != nil {
			logger.Warnw("Credentials reload callback error",
				"error", err)
			// Continue calling other callbacks even if one fails
		}
	}

	return nil
}

// Stop stops watching for credentials changes
func (cw *CredentialsWatcher) Stop() error {
	return cw.watcher.Close()
}

// isBackupFile checks if the file is a backup file (.back1, .back2, .back3)
func isBackupFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, ".back1") ||
		strings.HasSuffix(base, ".back2") ||
		strings.HasSuffix(base, ".back3")
}

// SetGlobalWatcher sets the global watcher instance (used to prevent reload loops)
func SetGlobalWatcher(watcher *CredentialsWatcher) {
	globalWatcherMu.Lock()
	defer globalWatcherMu.Unlock()
	globalWatcher = watcher
}

// GetGlobalWatcher returns the global watcher instance
func GetGlobalWatcher() *CredentialsWatcher {
	globalWatcherMu.Lock()
	defer globalWatcherMu.Unlock()
	return globalWatcher
}
