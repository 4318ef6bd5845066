package settingsync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"reminder_service/internal/domain/notification"
)

// LoadFile reads a preference file and sanitizes it like the preference store does.
func LoadFile(path, defaultTimezone string) (notification.Preferences, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return notification.Preferences{}, fmt.Errorf("reading preference file: %w", err)
	}
	return notification.ParsePreferences(blob, defaultTimezone), nil
}

// WatchFile feeds every change of path into syncer until ctx is done. The
// parent directory is watched so editors that replace the file are seen too.
func WatchFile(ctx context.Context, path, defaultTimezone string, syncer *Syncer, log *logrus.Entry) error {
	path = filepath.Clean(path)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	logEntry := log.WithFields(logrus.Fields{"component": "prefs_watcher", "file": path})
	logEntry.Info("Watching preference file")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			prefs, err := LoadFile(path, defaultTimezone)
			if err != nil {
				logEntry.WithError(err).Warn("Could not read changed preference file")
				continue
			}
			if err := syncer.Update(prefs); err != nil {
				return err
			}
			logEntry.Debug("Preference change queued for sync")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logEntry.WithError(err).Warn("File watcher error")
		}
	}
}
