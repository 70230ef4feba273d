// Package runner finds template files and pushes them through the
// preprocessor in parallel, writing or reporting the results.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/recera/tnsprep/cmd/tnsprep/internal/cache"
	"github.com/recera/tnsprep/pkg/preprocess"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// cacheVersion is mixed into cache keys; bump it when output changes for
// the same input and options
const cacheVersion = "2"

// Mode selects where results go
type Mode int

const (
	// ModeSuffix writes Index.svelte to Index<suffix>.svelte next to it
	ModeSuffix Mode = iota
	// ModeOutDir mirrors the source tree under Options.OutDir
	ModeOutDir
	// ModeStdout prints results to Options.Stdout in discovery order
	ModeStdout
	// ModeCheck transforms without writing anything
	ModeCheck
)

// Options configures a Runner
type Options struct {
	Mode       Mode
	Extensions []string
	Exclude    []string
	OutDir     string
	OutSuffix  string
	Parallel   int
	Stdout     io.Writer
	Cache      *cache.Cache
	Logger     *zerolog.Logger
	// CacheKey identifies the preprocessor options in cache keys
	CacheKey string
	// BaseDirs anchor files named explicitly: a file inside one of them keeps
	// its path relative to the innermost such directory, so it lands in the
	// same place under OutDir as when its whole tree is processed
	BaseDirs []string
}

// Source is a discovered template
type Source struct {
	Path string
	Rel  string // path relative to the argument it was found under
}

// cachedResult is what the cache holds for one transformed file
type cachedResult struct {
	Code     string `json:"code"`
	Roots    int    `json:"roots"`
	Expanded int    `json:"expanded"`
	Skipped  int    `json:"skipped"`
}

// FileResult is the outcome for one file
type FileResult struct {
	Source   Source
	Output   string // destination path, empty when nothing was written
	Roots    int
	Expanded int
	Skipped  int
	Cached   bool
	Changed  bool // destination content differs from what was there before
	Err      error
	Duration time.Duration

	code string
}

// Summary aggregates a run
type Summary struct {
	Files    []FileResult
	Duration time.Duration
}

// Runner drives a preprocessor over files on disk
type Runner struct {
	pre  *preprocess.Preprocessor
	opts Options
	log  zerolog.Logger
}

// New creates a runner
func New(pre *preprocess.Preprocessor, opts Options) *Runner {
	r := &Runner{
		pre:  pre,
		opts: opts,
		log:  zerolog.Nop(),
	}
	if r.opts.Parallel < 1 {
		r.opts.Parallel = 1
	}
	if len(r.opts.Extensions) == 0 {
		r.opts.Extensions = []string{".svelte"}
	}
	if r.opts.Stdout == nil {
		r.opts.Stdout = os.Stdout
	}
	if opts.Logger != nil {
		r.log = *opts.Logger
	}
	return r
}

// Run discovers every template under paths and processes them. File level
// failures are recorded in the summary; the returned error is reserved for
// discovery failures and cancellation.
func (r *Runner) Run(ctx context.Context, paths []string) (*Summary, error) {
	start := time.Now()

	sources, err := r.Discover(paths)
	if err != nil {
		return nil, err
	}

	results := make([]FileResult, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Parallel)

	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = r.ProcessFile(src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if r.opts.Mode == ModeStdout {
		for i := range results {
			if results[i].Err != nil {
				continue
			}
			if _, err := io.WriteString(r.opts.Stdout, results[i].code); err != nil {
				return nil, fmt.Errorf("failed to write output: %w", err)
			}
		}
	}

	return &Summary{Files: results, Duration: time.Since(start)}, nil
}

// Discover expands paths into template sources. Directories are walked
// recursively; excluded directories and previously generated files are
// skipped. Files named explicitly are always included.
func (r *Runner) Discover(paths []string) ([]Source, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}

	var sources []Source
	seen := make(map[string]bool)
	add := func(path, rel string) {
		if abs, err := filepath.Abs(path); err == nil {
			if seen[abs] {
				return
			}
			seen[abs] = true
		}
		sources = append(sources, Source{Path: path, Rel: rel})
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("failed to find templates: %w", err)
		}
		if !info.IsDir() {
			add(root, r.relToBase(root))
			continue
		}

		err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				if path != root && r.skipDir(path, info.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if r.IsSource(path) {
				rel, err := filepath.Rel(root, path)
				if err != nil {
					rel = filepath.Base(path)
				}
				add(path, rel)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to find templates: %w", err)
		}
	}

	return sources, nil
}

// IsSource reports whether path is a template this runner would process
func (r *Runner) IsSource(path string) bool {
	ext := filepath.Ext(path)
	matched := false
	for _, e := range r.opts.Extensions {
		if strings.EqualFold(ext, e) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	// generated files are not sources
	if r.opts.Mode == ModeSuffix && r.opts.OutSuffix != "" {
		if strings.HasSuffix(strings.TrimSuffix(path, ext), r.opts.OutSuffix) {
			return false
		}
	}
	if r.opts.Mode == ModeOutDir && r.opts.OutDir != "" && within(r.opts.OutDir, path) {
		return false
	}
	return true
}

// relToBase returns path relative to the innermost base directory that
// contains it, or its base name when none does
func (r *Runner) relToBase(path string) string {
	rel := filepath.Base(path)
	best := -1
	for _, base := range r.opts.BaseDirs {
		info, err := os.Stat(base)
		if err != nil || !info.IsDir() || !within(base, path) {
			continue
		}
		absBase, err1 := filepath.Abs(base)
		absPath, err2 := filepath.Abs(path)
		if err1 != nil || err2 != nil || len(absBase) <= best {
			continue
		}
		if p, err := filepath.Rel(absBase, absPath); err == nil {
			rel, best = p, len(absBase)
		}
	}
	return rel
}

func (r *Runner) skipDir(path, name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, ex := range r.opts.Exclude {
		if name == ex {
			return true
		}
	}
	return r.opts.Mode == ModeOutDir && r.opts.OutDir != "" && within(r.opts.OutDir, path)
}

// ProcessFile transforms a single source and delivers the result
func (r *Runner) ProcessFile(src Source) FileResult {
	start := time.Now()
	res := FileResult{Source: src}
	defer func() {
		res.Duration = time.Since(start)
	}()

	content, err := os.ReadFile(src.Path)
	if err != nil {
		res.Err = fmt.Errorf("failed to read file: %w", err)
		return res
	}

	code, err := r.transform(src, string(content), &res)
	if err != nil {
		res.Err = err
		r.log.Error().Err(err).Str("file", src.Path).Msg("transform failed")
		return res
	}

	switch r.opts.Mode {
	case ModeCheck:
		res.Changed = code != string(content)
	case ModeStdout:
		// printed by Run once every file is done, to keep the order stable
		res.code = code
	default:
		res.Output = r.Destination(src)
		res.Changed, res.Err = writeIfChanged(res.Output, []byte(code))
	}

	r.log.Debug().
		Str("file", src.Path).
		Str("output", res.Output).
		Bool("cached", res.Cached).
		Dur("took", time.Since(start)).
		Msg("processed")

	return res
}

// Destination returns where the result for src is written
func (r *Runner) Destination(src Source) string {
	if r.opts.Mode == ModeOutDir && r.opts.OutDir != "" {
		return filepath.Join(r.opts.OutDir, src.Rel)
	}
	ext := filepath.Ext(src.Path)
	return strings.TrimSuffix(src.Path, ext) + r.opts.OutSuffix + ext
}

func (r *Runner) transform(src Source, content string, res *FileResult) (string, error) {
	var key string
	if r.opts.Cache != nil {
		key = cache.Key(cacheVersion, r.opts.CacheKey, content)
		if data, ok := r.opts.Cache.Get(key); ok {
			var hit cachedResult
			if err := json.Unmarshal(data, &hit); err == nil {
				res.Cached = true
				res.Roots = hit.Roots
				res.Expanded = hit.Expanded
				res.Skipped = hit.Skipped
				return hit.Code, nil
			}
			r.log.Debug().Str("file", src.Path).Msg("ignoring unreadable cache entry")
		}
	}

	out, err := r.pre.Markup(preprocess.Input{Content: content, File: src.Path})
	if err != nil {
		return "", err
	}
	res.Roots = out.Roots
	res.Expanded = out.Expanded()
	res.Skipped = len(out.Bindings) - res.Expanded

	if r.opts.Cache != nil {
		data, err := json.Marshal(cachedResult{
			Code:     out.Code,
			Roots:    res.Roots,
			Expanded: res.Expanded,
			Skipped:  res.Skipped,
		})
		if err == nil {
			err = r.opts.Cache.Put(key, src.Path, data)
		}
		if err != nil {
			r.log.Warn().Err(err).Str("file", src.Path).Msg("failed to cache result")
		}
	}

	return out.Code, nil
}

// Failed returns the results that carry an error
func (s *Summary) Failed() []FileResult {
	var failed []FileResult
	for _, f := range s.Files {
		if f.Err != nil {
			failed = append(failed, f)
		}
	}
	return failed
}

// Err joins every file error, nil when all files succeeded
func (s *Summary) Err() error {
	var errs []error
	for _, f := range s.Failed() {
		errs = append(errs, f.Err)
	}
	return errors.Join(errs...)
}

// Count returns how many results satisfy pred
func (s *Summary) Count(pred func(FileResult) bool) int {
	n := 0
	for _, f := range s.Files {
		if pred(f) {
			n++
		}
	}
	return n
}

func writeIfChanged(path string, data []byte) (bool, error) {
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, data) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, fmt.Errorf("failed to write output file: %w", err)
	}
	return true, nil
}

// within reports whether path is dir or inside it
func within(dir, path string) bool {
	absDir, err1 := filepath.Abs(dir)
	absPath, err2 := filepath.Abs(path)
	if err1 != nil || err2 != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
