package gitfetch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"skillshub/internal/catalog"
	"skillshub/internal/faults"
	"skillshub/internal/manifest"
)

// Fetcher clones repositories into a disk cache and serves working
// trees from it while they are fresh. One fetch is in flight per cache
// key; distinct keys proceed independently.
type Fetcher struct {
	cacheDir     string
	ttl          func() time.Duration
	cloneTimeout time.Duration
	preferCLI    bool

	// clone is swappable so tests can count network activity.
	clone func(ctx context.Context, repo, ref, dest string) error

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTTL supplies the cache freshness window, consulted on every
// fetch so settings changes apply without a restart.
func WithTTL(ttl func() time.Duration) Option {
	return func(f *Fetcher) { f.ttl = ttl }
}

// WithCloneTimeout bounds a single clone attempt.
func WithCloneTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.cloneTimeout = d }
}

// WithPreferCLI controls whether the external git executable is tried
// before the embedded implementation.
func WithPreferCLI(prefer bool) Option {
	return func(f *Fetcher) { f.preferCLI = prefer }
}

// withCloneFunc replaces the clone implementation, for tests.
func withCloneFunc(fn func(ctx context.Context, repo, ref, dest string) error) Option {
	return func(f *Fetcher) { f.clone = fn }
}

// New creates a fetcher caching under cacheDir.
func New(cacheDir string, opts ...Option) *Fetcher {
	f := &Fetcher{
		cacheDir:     cacheDir,
		ttl:          func() time.Duration { return catalog.DefaultGitCacheTTL },
		cloneTimeout: 120 * time.Second,
		preferCLI:    true,
		locks:        make(map[string]*sync.Mutex),
	}
	f.clone = f.cloneRepo
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns a working tree for (repo, ref), from cache when the
// cached clone is younger than the TTL, otherwise freshly cloned.
func (f *Fetcher) Fetch(ctx context.Context, repo, ref string) (string, error) {
	return f.fetch(ctx, repo, ref, false)
}

// FetchFresh bypasses the freshness window and always re-clones, used
// by explicit update checks.
func (f *Fetcher) FetchFresh(ctx context.Context, repo, ref string) (string, error) {
	return f.fetch(ctx, repo, ref, true)
}

func (f *Fetcher) fetch(ctx context.Context, repo, ref string, force bool) (string, error) {
	key := cacheKey(repo, ref)
	lock := f.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	dest := filepath.Join(f.cacheDir, key)
	if !force {
		if info, err := os.Stat(dest); err == nil && time.Since(info.ModTime()) < f.ttl() {
			return dest, nil
		}
	}

	if err := os.MkdirAll(f.cacheDir, 0700); err != nil {
		return "", faults.Wrap(faults.IO, err, "create git cache").At(f.cacheDir)
	}

	// Clone into a sibling temp dir; the cache entry only ever holds a
	// complete clone.
	tmp, err := os.MkdirTemp(f.cacheDir, key+"-tmp-")
	if err != nil {
		return "", faults.Wrap(faults.IO, err, "create clone staging dir")
	}
	if err := f.clone(ctx, repo, ref, tmp); err != nil {
		os.RemoveAll(tmp)
		return "", err
	}

	if err := os.RemoveAll(dest); err != nil {
		os.RemoveAll(tmp)
		return "", faults.Wrap(faults.IO, err, "evict stale cache entry").At(dest)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.RemoveAll(tmp)
		return "", faults.Wrap(faults.IO, err, "adopt clone into cache").At(dest)
	}
	now := time.Now()
	os.Chtimes(dest, now, now)
	return dest, nil
}

// cloneRepo prefers the external git executable, which inherits the
// user's credentials and config, and falls back to the embedded
// implementation when the executable is missing or fails.
func (f *Fetcher) cloneRepo(ctx context.Context, repo, ref, dest string) error {
	ctx, cancel := context.WithTimeout(ctx, f.cloneTimeout)
	defer cancel()

	if f.preferCLI {
		if _, lookErr := exec.LookPath("git"); lookErr == nil {
			if err := cloneCLI(ctx, repo, ref, dest); err == nil {
				return nil
			} else if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return faults.Wrap(faults.Connection, err, "clone timed out: %s", repo)
			} else {
				log.Printf("[gitfetch] git executable failed for %s, trying embedded clone: %v", repo, err)
				clearDir(dest)
			}
		}
	}

	opts := &git.CloneOptions{URL: repo, Depth: 1}
	if ref != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(ref)
		opts.SingleBranch = true
	}
	if _, err := git.PlainCloneContext(ctx, dest, false, opts); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return faults.Wrap(faults.Connection, err, "clone timed out: %s", repo)
		}
		return faults.Wrap(faults.Connection, err, "clone failed: %s", repo)
	}
	return nil
}

// cloneCLI runs the external git with a non-interactive environment so
// a credential prompt can never stall the fetch.
func cloneCLI(ctx context.Context, repo, ref, dest string) error {
	args := []string{"clone", "--depth", "1"}
	if ref != "" {
		args = append(args, "--branch", ref)
	}
	args = append(args, repo, dest)

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GCM_INTERACTIVE=never")
	if out, err := cmd.CombinedOutput(); err != nil {
		return faults.Wrap(faults.Connection, err, "git clone: %s", string(out))
	}
	return nil
}

// clearDir empties dir without removing it, so a failed CLI attempt
// leaves a clean slate for the embedded fallback.
func clearDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		os.RemoveAll(filepath.Join(dir, e.Name()))
	}
}

// Discover lists the skill candidates a fetched working tree offers
// under subpath. When the subpath is the repository root, repoName
// names a candidate whose frontmatter has no name of its own.
func (f *Fetcher) Discover(workTree, subpath, repoName string) ([]manifest.Candidate, error) {
	dir := workTree
	if subpath != "" {
		dir = filepath.Join(workTree, filepath.FromSlash(subpath))
	}
	defaultName := ""
	if subpath == "" {
		defaultName = repoName
	}
	return manifest.Discover(dir, defaultName)
}

// Cleanup evicts cache entries older than the given age in days and
// returns how many were removed.
func (f *Fetcher) Cleanup(olderThanDays int) (int, error) {
	if olderThanDays < 1 {
		olderThanDays = 1
	}
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	return f.evict(func(info os.FileInfo) bool { return info.ModTime().Before(cutoff) })
}

// Clear evicts every cache entry immediately.
func (f *Fetcher) Clear() (int, error) {
	return f.evict(func(os.FileInfo) bool { return true })
}

func (f *Fetcher) evict(stale func(os.FileInfo) bool) (int, error) {
	entries, err := os.ReadDir(f.cacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, faults.Wrap(faults.IO, err, "read git cache").At(f.cacheDir)
	}

	removed := 0
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || !stale(info) {
			continue
		}
		name := e.Name()
		lock := f.keyLock(name)
		lock.Lock()
		err = os.RemoveAll(filepath.Join(f.cacheDir, name))
		lock.Unlock()
		if err != nil {
			log.Printf("[gitfetch] failed to evict cache entry %s: %v", name, err)
			continue
		}
		removed++
	}
	return removed, nil
}

func (f *Fetcher) keyLock(key string) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	lock, ok := f.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		f.locks[key] = lock
	}
	return lock
}

func cacheKey(repo, ref string) string {
	sum := sha1.Sum([]byte(repo + "|" + ref))
	return hex.EncodeToString(sum[:])
}
