package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/pterm/pterm"
)

// settle is the time to wait after a change before regenerating. Editors
// often save a file in several steps.
const settle = 200 * time.Millisecond

// watch calls run whenever one of files changes, until ctx is done. The
// directories of files are watched, which keeps files replaced by a rename
// under observation.
func watch(ctx context.Context, files []string, run func() error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "cannot watch inputs")
	}
	defer w.Close()
	watched := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return errors.Wrapf(err, "cannot watch %s", f)
		}
		watched[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			return errors.Wrapf(err, "cannot watch %s", dir)
		}
		dirs[dir] = true
	}
	pterm.Info.Println("watching for changes, stop with <ctrl>C")
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev, watched) {
				continue
			}
			tracer().Debugf("change: %s", ev)
			fire = time.After(settle)
		case <-fire:
			fire = nil
			if err := run(); err != nil {
				pterm.Error.Println(err.Error())
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			tracer().Errorf("watch: %v", err)
		}
	}
}

func relevant(ev fsnotify.Event, watched map[string]bool) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	abs, err := filepath.Abs(ev.Name)
	return err == nil && watched[abs]
}
