package github

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/google/go-github/v81/github"

	"github.com/bull/campus-rag/internal/domain"
	"github.com/bull/campus-rag/internal/loader"
)

// FetchedDoc is a raw file fetched from GitHub.
type FetchedDoc struct {
	Path    string // relative to the base path
	Content []byte
	SHA     string
}

// Fetcher reads supported documents below a repository directory.
type Fetcher struct {
	client   *Client
	owner    string
	repo     string
	basePath string
	ref      string
	logger   *slog.Logger
}

// NewFetcher creates a fetcher. An empty ref reads the default branch.
func NewFetcher(client *Client, owner, repo, basePath, ref string, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:   client,
		owner:    owner,
		repo:     repo,
		basePath: basePath,
		ref:      ref,
		logger:   logger,
	}
}

func (f *Fetcher) contentOptions() *github.RepositoryContentGetOptions {
	if f.ref == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: f.ref}
}

// ListDocs recursively lists supported files in the repository directory.
func (f *Fetcher) ListDocs(ctx context.Context) ([]string, error) {
	return f.listDocsRecursive(ctx, f.basePath, "")
}

func (f *Fetcher) listDocsRecursive(ctx context.Context, fullPath, relativePath string) ([]string, error) {
	var docs []string

	_, dirContents, _, err := f.client.Repositories.GetContents(ctx, f.owner, f.repo, fullPath, f.contentOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", fullPath, err)
	}

	for _, item := range dirContents {
		if item.Type == nil || item.Name == nil {
			continue
		}

		itemRelPath := path.Join(relativePath, *item.Name)

		switch *item.Type {
		case "file":
			if loader.IsSupported(*item.Name) {
				docs = append(docs, itemRelPath)
			}
		case "dir":
			subDocs, err := f.listDocsRecursive(ctx, path.Join(fullPath, *item.Name), itemRelPath)
			if err != nil {
				return nil, err
			}
			docs = append(docs, subDocs...)
		}
	}

	return docs, nil
}

// FetchDoc fetches the content of one file.
func (f *Fetcher) FetchDoc(ctx context.Context, relativePath string) (*FetchedDoc, error) {
	fullPath := path.Join(f.basePath, relativePath)

	fileContent, _, _, err := f.client.Repositories.GetContents(ctx, f.owner, f.repo, fullPath, f.contentOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to get content of %s: %w", fullPath, err)
	}
	if fileContent == nil {
		return nil, fmt.Errorf("no file content returned for %s", fullPath)
	}

	content, err := fileContent.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode content of %s: %w", fullPath, err)
	}

	return &FetchedDoc{
		Path:    relativePath,
		Content: []byte(content),
		SHA:     fileContent.GetSHA(),
	}, nil
}

// Load fetches and parses every supported file. A file that cannot be
// fetched or parsed is reported as failed; a listing failure is an error.
func (f *Fetcher) Load(ctx context.Context, corpus domain.Corpus) ([]*domain.Document, []domain.FailedDoc, error) {
	paths, err := f.ListDocs(ctx)
	if err != nil {
		return nil, nil, err
	}

	var docs []*domain.Document
	var failed []domain.FailedDoc
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		doc, err := f.document(ctx, p, corpus)
		if err != nil {
			f.logger.Warn("Document unavailable", "path", p, "error", err)
			failed = append(failed, domain.FailedDoc{Path: p, Reason: err.Error()})
			continue
		}
		docs = append(docs, doc)
	}

	f.logger.Info("Fetched documents", "repo", f.owner+"/"+f.repo, "path", f.basePath, "documents", len(docs), "failed", len(failed))
	return docs, failed, nil
}

func (f *Fetcher) document(ctx context.Context, relativePath string, corpus domain.Corpus) (*domain.Document, error) {
	fetched, err := f.FetchDoc(ctx, relativePath)
	if err != nil {
		return nil, err
	}
	parsed, err := loader.Parse(bytes.NewReader(fetched.Content), path.Base(relativePath))
	if err != nil {
		return nil, err
	}
	return &domain.Document{
		ID:     relativePath,
		Title:  parsed.Title,
		Text:   parsed.Text,
		Corpus: corpus,
		Pages:  parsed.Pages,
		Units:  parsed.Units,
	}, nil
}

// GetLatestCommitSHA retrieves the SHA of the most recent commit affecting the docs directory
func (f *Fetcher) GetLatestCommitSHA(ctx context.Context) (string, error) {
	commits, _, err := f.client.Repositories.ListCommits(
		ctx,
		f.owner,
		f.repo,
		&github.CommitsListOptions{
			SHA:  f.ref,
			Path: f.basePath,
			ListOptions: github.ListOptions{
				PerPage: 1,
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to get latest commit: %w", err)
	}

	if len(commits) == 0 {
		return "", fmt.Errorf("no commits found for path %s", f.basePath)
	}

	if commits[0].SHA == nil {
		return "", fmt.Errorf("commit SHA is nil")
	}

	return *commits[0].SHA, nil
}
