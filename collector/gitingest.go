package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
)

const (
	defaultMaxFileBytes  = 256 << 10
	defaultMaxTotalBytes = 4 << 20
	binarySniffBytes     = 8000
	fileSeparator        = "================================================\n"
)

var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"__pycache__":  true,
	".venv":        true,
}

// GitIngester shallow-clones a repository into memory and flattens it into
// a text digest: a summary, a directory tree and the concatenated files.
type GitIngester struct {
	MaxFileBytes  int64
	MaxTotalBytes int64
	logger        *log.Logger
}

func NewGitIngester(maxFileBytes, maxTotalBytes int64, logger *log.Logger) *GitIngester {
	if maxFileBytes <= 0 {
		maxFileBytes = defaultMaxFileBytes
	}
	if maxTotalBytes <= 0 {
		maxTotalBytes = defaultMaxTotalBytes
	}
	if logger == nil {
		logger = log.Default()
	}
	return &GitIngester{MaxFileBytes: maxFileBytes, MaxTotalBytes: maxTotalBytes, logger: logger}
}

// repoRef is a parsed repository URL.
type repoRef struct {
	CloneURL string
	Owner    string
	Name     string
	Branch   string
	Subpath  string
}

// parseRepoURL accepts github.com/owner/repo[/tree/<branch>[/sub/path]] with or without scheme.
func parseRepoURL(raw string) (repoRef, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	host, rest, ok := strings.Cut(s, "/")
	if !ok || host == "" {
		return repoRef{}, fmt.Errorf("not a repository url: %q", raw)
	}
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return repoRef{}, fmt.Errorf("repository url needs owner and name: %q", raw)
	}
	ref := repoRef{
		Owner: parts[0],
		Name:  strings.TrimSuffix(parts[1], ".git"),
	}
	ref.CloneURL = fmt.Sprintf("https://%s/%s/%s.git", host, ref.Owner, ref.Name)
	if len(parts) >= 4 && (parts[2] == "tree" || parts[2] == "blob") {
		ref.Branch = parts[3]
		ref.Subpath = strings.Join(parts[4:], "/")
	}
	return ref, nil
}

func (g *GitIngester) Ingest(ctx context.Context, url string) (string, string, string, error) {
	ref, err := parseRepoURL(url)
	if err != nil {
		return "", "", "", err
	}

	opts := &git.CloneOptions{
		URL:          ref.CloneURL,
		Depth:        1,
		SingleBranch: true,
		Tags:         git.NoTags,
	}
	if ref.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(ref.Branch)
	}

	fs := memfs.New()
	if _, err := git.CloneContext(ctx, memory.NewStorage(), fs, opts); err != nil {
		return "", "", "", fmt.Errorf("clone %s: %w", ref.CloneURL, err)
	}
	g.logger.Printf("[collector] cloned %s/%s", ref.Owner, ref.Name)

	root := "/"
	if ref.Subpath != "" {
		root = "/" + ref.Subpath
	}
	d, err := digestFS(fs, root, ref.Owner+"/"+ref.Name, g.MaxFileBytes, g.MaxTotalBytes)
	if err != nil {
		return "", "", "", err
	}
	if ref.Branch != "" {
		d.summary = strings.Replace(d.summary, "\n", fmt.Sprintf("\nBranch: %s\n", ref.Branch), 1)
	}
	return d.summary, d.tree, d.content, nil
}

type repoDigest struct {
	summary string
	tree    string
	content string
	files   int
}

// digestFS walks fs from root and renders the three digest sections.
func digestFS(fs billy.Filesystem, root, name string, maxFile, maxTotal int64) (repoDigest, error) {
	if _, err := fs.Stat(root); err != nil {
		return repoDigest{}, fmt.Errorf("path %s: %w", root, err)
	}

	var tree, content strings.Builder
	tree.WriteString("Directory structure:\n")
	tree.WriteString("└── " + strings.ReplaceAll(name, "/", "-") + "/\n")

	var (
		files int
		total int64
	)
	var walk func(dir, prefix string) error
	walk = func(dir, prefix string) error {
		entries, err := fs.ReadDir(dir)
		if err != nil {
			return err
		}
		entries = filterEntries(entries)
		for i, e := range entries {
			last := i == len(entries)-1
			branch, next := "├── ", "│   "
			if last {
				branch, next = "└── ", "    "
			}
			p := path.Join(dir, e.Name())
			if e.IsDir() {
				tree.WriteString(prefix + branch + e.Name() + "/\n")
				if err := walk(p, prefix+next); err != nil {
					return err
				}
				continue
			}
			tree.WriteString(prefix + branch + e.Name() + "\n")
			if e.Size() > maxFile || total >= maxTotal {
				continue
			}
			data, err := readFile(fs, p, maxFile)
			if err != nil {
				return err
			}
			if isBinary(data) {
				continue
			}
			content.WriteString(fileSeparator)
			content.WriteString("FILE: " + strings.TrimPrefix(p, "/") + "\n")
			content.WriteString(fileSeparator)
			content.Write(data)
			content.WriteString("\n\n")
			files++
			total += int64(len(data))
		}
		return nil
	}
	if err := walk(root, "    "); err != nil {
		return repoDigest{}, err
	}

	summary := fmt.Sprintf("Repository: %s\nFiles analyzed: %d\nEstimated tokens: %s\n\n",
		name, files, estimateTokens(content.Len()))
	return repoDigest{
		summary: summary,
		tree:    tree.String() + "\n",
		content: content.String(),
		files:   files,
	}, nil
}

func filterEntries(entries []os.FileInfo) []os.FileInfo {
	out := entries[:0]
	for _, e := range entries {
		if e.IsDir() && skippedDirs[e.Name()] {
			continue
		}
		out = append(out, e)
	}
	// 目录在前，同类按名称排序
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDir() != out[j].IsDir() {
			return out[i].IsDir()
		}
		return out[i].Name() < out[j].Name()
	})
	return out
}

func readFile(fs billy.Filesystem, p string, limit int64) ([]byte, error) {
	f, err := fs.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return data, nil
}

func isBinary(data []byte) bool {
	n := len(data)
	if n > binarySniffBytes {
		n = binarySniffBytes
	}
	return bytes.IndexByte(data[:n], 0) >= 0
}

// estimateTokens uses the ~4 chars per token rule of thumb.
func estimateTokens(chars int) string {
	tokens := chars / 4
	switch {
	case tokens >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(tokens)/1_000_000)
	case tokens >= 1_000:
		return fmt.Sprintf("%.1fk", float64(tokens)/1_000)
	default:
		return fmt.Sprintf("%d", tokens)
	}
}
