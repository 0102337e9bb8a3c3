package policylib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Principled-Evolution/aicertify/internal/logging"
)

// reloadDebounce coalesces a burst of filesystem events (an editor's
// save-as-temp-then-rename, a multi-file checkout) into a single
// Reload, mirroring the teacher's watch agent debouncer.
const reloadDebounce = 300 * time.Millisecond

// Watch starts watching the library root for filesystem changes and
// calls Reload whenever *.rego files are created, written, renamed, or
// removed, debouncing bursts of events into a single reload. It blocks
// until ctx is cancelled, then closes the underlying watcher and
// returns. onReload, if non-nil, is invoked after every reload attempt
// with the resulting error (nil on success), so callers can log or
// surface reload failures without Watch itself returning early: a
// library mid-edit that fails to reload should keep serving its last
// good index, not tear down the watch loop.
//
// Watch requires an OS-backed library (opened via Open, not OpenFs
// with an in-memory afero.Fs); it returns an error immediately
// otherwise.
func (l *Library) Watch(ctx context.Context, onReload func(error)) error {
	if _, err := os.Stat(l.root); err != nil {
		return fmt.Errorf("policylib: watch requires an OS-backed root: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("policylib: create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchRecursive(watcher, l.root); err != nil {
		return fmt.Errorf("policylib: watch %s: %w", l.root, err)
	}

	log := logging.For("policylib")
	log.Info("watching policy library for changes", "root", l.root)

	var debounce *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					if err := addWatchRecursive(watcher, event.Name); err != nil {
						log.Warn("cannot watch new policy directory", "path", event.Name, "error", err)
					}
					continue
				}
			}
			if !relevantEvent(event) {
				continue
			}
			if debounce == nil {
				debounce = time.AfterFunc(reloadDebounce, func() {
					select {
					case pending <- struct{}{}:
					default:
					}
				})
			} else {
				debounce.Reset(reloadDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("policy library watch error", "error", err)

		case <-pending:
			err := l.Reload()
			if err != nil {
				log.Warn("policy library reload failed, keeping previous index", "error", err)
			}
			if onReload != nil {
				onReload(err)
			}
		}
	}
}

// relevantEvent reports whether a filesystem event should trigger a
// reload: writes, creates, renames, and removes of policy or VERSION
// files. Directory creation events are handled separately, by
// registering the new directory with the watcher rather than
// reloading on the empty directory itself.
func relevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	name := filepath.Base(event.Name)
	return strings.HasSuffix(name, Extension) || name == "VERSION"
}

// addWatchRecursive walks dir and registers every subdirectory with
// watcher, grounded on the teacher's WatchAgent.addWatchRecursive.
func addWatchRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
