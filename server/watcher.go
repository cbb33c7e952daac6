package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/aqua777/docindex/pipeline"
)

// settleDelay gives the producer of a watched file time to finish writing
// before the file is staged.
const settleDelay = 200 * time.Millisecond

// Watch ingests .docx files dropped into dir through the same background
// job path as uploads. The watch stops when ctx is cancelled.
func (s *Server) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Create) {
					continue
				}
				if !strings.EqualFold(filepath.Ext(event.Name), ".docx") {
					continue
				}
				go s.ingestWatched(event.Name)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Error("watch error", "dir", dir, "error", err)
			}
		}
	}()

	s.logger.Info("watching for documents", "dir", dir)
	return nil
}

// ingestWatched stages a watched file and runs the ingestion job on it.
// The original file is left in place.
func (s *Server) ingestWatched(path string) {
	time.Sleep(settleDelay)

	src, err := os.Open(path)
	if err != nil {
		s.logger.Error("failed to open watched document", "path", path, "error", err)
		return
	}
	defer src.Close()

	staged, err := os.CreateTemp(s.tempDir, "docindex-watch-*.docx")
	if err != nil {
		s.logger.Error("failed to stage watched document", "path", path, "error", err)
		return
	}
	if _, err := io.Copy(staged, src); err != nil {
		staged.Close()
		os.Remove(staged.Name())
		s.logger.Error("failed to stage watched document", "path", path, "error", err)
		return
	}
	staged.Close()

	sourceID := pipeline.NewSourceID()
	s.logger.Info("ingesting watched document", "path", path, "source_id", sourceID)
	s.broker.SetWaiting(sourceID)
	s.runIndexJob(sourceID, staged.Name())
}
