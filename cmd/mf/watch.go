package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/markform/internal/inspect"
	"github.com/steveyegge/markform/internal/ui"
)

const watchDebounce = 500 * time.Millisecond

// watchInspect re-inspects path after every change until ctx is done. The
// parent directory is watched because editors often save by rename.
func watchInspect(ctx context.Context, path string, opts inspect.Options) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	render := func() {
		res, err := inspectFile(path, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		if !jsonOutput && ui.IsTerminal() {
			fmt.Print("\033[2J\033[H")
		}
		printInspection(res)
	}
	render()
	fmt.Fprintf(os.Stderr, "\nWatching %s for changes... (Press Ctrl+C to exit)\n", path)

	changes := make(chan struct{}, 1)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(changes)
		for {
			select {
			case <-gctx.Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					select {
					case changes <- struct{}{}:
					default:
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				return fmt.Errorf("watching %s: %w", path, err)
			}
		}
	})

	g.Go(func() error {
		timer := time.NewTimer(watchDebounce)
		timer.Stop()
		for {
			select {
			case <-gctx.Done():
				fmt.Fprintf(os.Stderr, "\nStopped watching.\n")
				return nil
			case _, ok := <-changes:
				if !ok {
					return nil
				}
				timer.Reset(watchDebounce)
			case <-timer.C:
				render()
			}
		}
	})

	return g.Wait()
}
