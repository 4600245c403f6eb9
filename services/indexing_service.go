package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// DocumentIngester is the part of the RAG service a directory indexer feeds.
type DocumentIngester interface {
	AddDocuments(ctx context.Context, texts, sourceNames []string) ([]string, error)
	RemoveDocuments(ctx context.Context, sourceNames []string) ([]string, error)
}

// FileIndexingService keeps the document store in sync with a directory.
// Each file is stored under its slash-separated path relative to the watched
// directory, so files can also be removed through the HTTP API.
type FileIndexingService struct {
	ingester DocumentIngester

	mu      sync.Mutex
	indexed map[string]indexedFile // path -> indexed version
}

type indexedFile struct {
	source string
	hash   string
}

func NewFileIndexingService(ingester DocumentIngester) *FileIndexingService {
	return &FileIndexingService{
		ingester: ingester,
		indexed:  make(map[string]indexedFile),
	}
}

// sourceName names path relative to root. Files outside root keep their
// full path.
func sourceName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// ScanAndIndexDirectory indexes new or changed files under dirPath and drops
// files that disappeared since the previous scan.
func (s *FileIndexingService) ScanAndIndexDirectory(ctx context.Context, dirPath string) {
	log.Printf("INDEXER: Starting directory scan for: %s", dirPath)

	localFiles := make(map[string]bool)
	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !IsSupportedFile(path) {
			return nil
		}
		localFiles[path] = true
		if err := s.syncFile(ctx, dirPath, path); err != nil {
			log.Printf("INDEXER ERROR: Failed to process file %s: %v", path, err)
		}
		return nil
	})
	if err != nil {
		log.Printf("INDEXER ERROR: Error walking the path %s: %v", dirPath, err)
	}

	for _, path := range s.indexedPaths() {
		if !localFiles[path] {
			log.Printf("INDEXER: File deleted: %s. Removing from index...", path)
			if err := s.removeFile(ctx, path); err != nil {
				log.Printf("INDEXER ERROR: Failed to delete records for %s: %v", path, err)
			}
		}
	}
	log.Println("INDEXER: Directory scan finished.")
}

// WatchDirectory re-indexes files in dirPath as they change. It blocks until
// ctx is cancelled.
func (s *FileIndexingService) WatchDirectory(ctx context.Context, dirPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dirPath); err != nil {
		return fmt.Errorf("watch %s: %w", dirPath, err)
	}
	log.Printf("WATCHER: Watching directory: %s", dirPath)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !IsSupportedFile(event.Name) {
				continue
			}
			log.Printf("WATCHER EVENT: %s", event)

			// Editors often save through a temp file and rename, so Create
			// and Write are handled the same way.
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if err := s.syncFile(ctx, dirPath, event.Name); err != nil {
					log.Printf("WATCHER ERROR: Failed to process file %s: %v", event.Name, err)
				}
			} else if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				if err := s.removeFile(ctx, event.Name); err != nil {
					log.Printf("WATCHER ERROR: Failed to delete records for %s: %v", event.Name, err)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("WATCHER ERROR: %v", err)

		case <-ctx.Done():
			log.Println("WATCHER: Context cancelled, shutting down watcher.")
			return nil
		}
	}
}

// syncFile re-indexes path when its content hash differs from the indexed one.
func (s *FileIndexingService) syncFile(ctx context.Context, root, path string) error {
	hash, err := calculateFileHash(path)
	if err != nil {
		return fmt.Errorf("hash file: %w", err)
	}
	s.mu.Lock()
	prev, seen := s.indexed[path]
	s.mu.Unlock()
	if seen && prev.hash == hash {
		return nil
	}

	text, err := ExtractTextFromFile(path)
	if err != nil {
		return err
	}
	name := sourceName(root, path)
	if seen {
		log.Printf("INDEXER: File has changed: %s. Re-indexing...", path)
		if _, err := s.ingester.RemoveDocuments(ctx, []string{prev.source}); err != nil {
			return fmt.Errorf("remove old version: %w", err)
		}
	}
	ingested, err := s.ingester.AddDocuments(ctx, []string{text}, []string{name})
	if err != nil {
		return err
	}
	if len(ingested) == 0 {
		return fmt.Errorf("%w: %s produced no chunks", ErrUnsupportedDocument, path)
	}

	s.mu.Lock()
	s.indexed[path] = indexedFile{source: name, hash: hash}
	s.mu.Unlock()
	log.Printf("INDEXER: Indexed %s as %q", path, name)
	return nil
}

func (s *FileIndexingService) removeFile(ctx context.Context, path string) error {
	s.mu.Lock()
	prev, seen := s.indexed[path]
	delete(s.indexed, path)
	s.mu.Unlock()
	if !seen {
		return nil
	}
	_, err := s.ingester.RemoveDocuments(ctx, []string{prev.source})
	return err
}

func (s *FileIndexingService) indexedPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.indexed))
	for p := range s.indexed {
		paths = append(paths, p)
	}
	return paths
}

func calculateFileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
