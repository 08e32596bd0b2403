package loader

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/bull/campus-rag/internal/domain"
)

// Dir loads every supported file below a root directory. Document IDs are
// slash-separated paths relative to the root.
type Dir struct {
	root   string
	logger *slog.Logger
}

// NewDir creates a directory source.
func NewDir(root string, logger *slog.Logger) *Dir {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dir{root: root, logger: logger}
}

// Root returns the directory being loaded.
func (d *Dir) Root() string { return d.root }

// Load walks the directory in lexical order. Files that fail to parse are
// reported and skipped; only an unreadable root is an error.
func (d *Dir) Load(ctx context.Context, corpus domain.Corpus) ([]*domain.Document, []domain.FailedDoc, error) {
	var docs []*domain.Document
	var failed []domain.FailedDoc

	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == d.root {
				return err
			}
			failed = append(failed, domain.FailedDoc{Path: path, Reason: err.Error()})
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry.IsDir() {
			if path != d.root && len(entry.Name()) > 0 && entry.Name()[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsSupported(path) {
			d.logger.Debug("Skipping unsupported file", "path", path)
			return nil
		}

		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		id := filepath.ToSlash(rel)

		doc, err := LoadFile(path, id, corpus)
		if err != nil {
			d.logger.Warn("Document unavailable", "path", id, "error", err)
			failed = append(failed, domain.FailedDoc{Path: id, Reason: err.Error()})
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", d.root, err)
	}

	d.logger.Info("Loaded documents", "root", d.root, "corpus", corpus, "documents", len(docs), "failed", len(failed))
	return docs, failed, nil
}
