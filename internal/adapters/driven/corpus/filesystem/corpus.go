// Package filesystem provides the local directory corpus.
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
	"github.com/custodia-labs/docusearch/internal/logger"
)

// Ensure Corpus implements the interface.
var _ driven.Corpus = (*Corpus)(nil)

// Scanner metadata keys set on raw documents.
const (
	MetaContentHash = "content_hash"
	MetaRelPath     = "rel_path"
)

// Corpus discovers documents in a directory tree.
type Corpus struct{}

// New creates a filesystem corpus.
func New() *Corpus {
	return &Corpus{}
}

// Scan walks root and returns matching documents in lexical path order.
// Hidden files and directories are skipped entirely and are not counted.
func (c *Corpus) Scan(ctx context.Context, root string, extensions []string) (*domain.CorpusScan, error) {
	absRoot, err := checkRoot(root)
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[normaliseExt(ext)] = true
	}

	scan := &domain.CorpusScan{}
	// WalkDir visits entries in lexical order.
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == absRoot {
			return walkErr
		}
		if isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if walkErr != nil {
			logger.Warn("corpus: skipping %s: %v", path, walkErr)
			return nil
		}
		if d.IsDir() {
			return nil
		}

		info, err := regularFileInfo(path, d)
		if err != nil || info == nil {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !allowed[ext] {
			scan.Ignored++
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		scan.Documents = append(scan.Documents, domain.Document{
			ID:         filepath.ToSlash(rel),
			Path:       path,
			URI:        "file://" + filepath.ToSlash(path),
			Title:      filepath.Base(path),
			MIMEType:   detectMIMEType(path),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
			Metadata: map[string]any{
				MetaRelPath: filepath.ToSlash(rel),
			},
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	logger.Debug("corpus: %d documents, %d ignored under %s", len(scan.Documents), scan.Ignored, absRoot)
	return scan, nil
}

// Read loads a scanned document and records its content hash.
func (c *Corpus) Read(ctx context.Context, doc domain.Document) (*domain.RawDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(doc.Path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	sum := sha256.Sum256(content)
	mimeType := doc.MIMEType
	if mimeType == "" {
		mimeType = detectMIMEType(doc.Path)
	}
	return &domain.RawDocument{
		URI:      doc.Path,
		MIMEType: mimeType,
		Content:  content,
		Metadata: map[string]any{
			MetaContentHash: hex.EncodeToString(sum[:]),
		},
	}, nil
}

// Watch reports file changes under root until ctx is cancelled.
// New directories are watched as they appear.
func (c *Corpus) Watch(ctx context.Context, root string) (<-chan domain.CorpusChange, error) {
	absRoot, err := checkRoot(root)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := addTree(watcher, absRoot); err != nil {
		watcher.Close()
		return nil, err
	}

	changes := make(chan domain.CorpusChange)
	go func() {
		defer close(changes)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				change := handleFsEvent(watcher, event)
				if change == nil {
					continue
				}
				select {
				case changes <- *change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("corpus watch: %v", err)
			}
		}
	}()

	return changes, nil
}

// handleFsEvent converts an fsnotify event. Directories and hidden paths
// produce no change; a created directory is added to the watch.
func handleFsEvent(watcher *fsnotify.Watcher, event fsnotify.Event) *domain.CorpusChange {
	if isHidden(filepath.Base(event.Name)) {
		return nil
	}

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if watcher != nil {
				if err := addTree(watcher, event.Name); err != nil {
					logger.Warn("corpus watch: %v", err)
				}
			}
			return nil
		}
		return &domain.CorpusChange{Type: domain.ChangeCreated, Path: event.Name}
	case event.Has(fsnotify.Write):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			return nil
		}
		return &domain.CorpusChange{Type: domain.ChangeUpdated, Path: event.Name}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return &domain.CorpusChange{Type: domain.ChangeDeleted, Path: event.Name}
	default:
		return nil
	}
}

// addTree watches dir and every non-hidden directory below it.
func addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// checkRoot resolves root and requires it to be a directory.
func checkRoot(root string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrCorpusNotFound, root, err)
	}
	info, err := os.Stat(absRoot)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s does not exist", domain.ErrCorpusNotFound, root)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrCorpusNotFound, root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", domain.ErrCorpusNotFound, root)
	}
	return absRoot, nil
}

// regularFileInfo returns info for regular files, following symlinks.
// Other entries return nil.
func regularFileInfo(path string, d fs.DirEntry) (fs.FileInfo, error) {
	if d.Type()&fs.ModeSymlink != 0 {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			return nil, err
		}
		return info, nil
	}
	if !d.Type().IsRegular() {
		return nil, nil
	}
	return d.Info()
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part != "" && part != "." && part != ".." && strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

func normaliseExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// knownTypes pins the types the parsers register so detection does not
// depend on the platform MIME table.
var knownTypes = map[string]string{
	".txt":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".html":     "text/html",
	".htm":      "text/html",
	".pdf":      "application/pdf",
	".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".pptx":     "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".xlsx":     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".doc":      "application/msword",
	".ppt":      "application/vnd.ms-powerpoint",
	".csv":      "text/csv",
}

// detectMIMEType maps a file name to its content type without parameters.
func detectMIMEType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return "text/plain"
	}
	if t, ok := knownTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = t[:i]
		}
		return strings.TrimSpace(t)
	}
	return "application/octet-stream"
}
