package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/brutus5000/bireus/logctx"
	"github.com/brutus5000/bireus/strategy"
)

// Manager owns every repository under a single root directory and fans
// operations out across them concurrently, one goroutine per repository,
// per spec.md §4.5.
type Manager struct {
	RootDir string
}

// NewManager returns a Manager rooted at rootDir.
func NewManager(rootDir string) *Manager {
	return &Manager{RootDir: rootDir}
}

// List returns the names of the repositories found directly under RootDir.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.RootDir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Create scaffolds a new repository named name under RootDir.
func (m *Manager) Create(name, firstVersion string, strat strategy.Strategy) (*Repository, error) {
	return Create(m.RootDir, name, firstVersion, strat)
}

// Open loads the repository named name.
func (m *Manager) Open(name string) (*Repository, error) {
	return Open(filepath.Join(m.RootDir, name))
}

// result pairs a repository name with whatever error its operation
// produced, so FullUpdate/FullCleanup can report every failure instead of
// just the first.
type result struct {
	name string
	err  error
}

// FullUpdate opens and updates every repository under RootDir concurrently.
// A per-repository failure does not block the others; every error is
// collected and returned together.
func (m *Manager) FullUpdate(ctx context.Context) error {
	names, err := m.List()
	if err != nil {
		return err
	}

	logger := logctx.GetLogger(ctx)
	var wg sync.WaitGroup
	results := make(chan result, len(names))

	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			results <- result{name: name, err: m.updateOne(ctx, name)}
		}(name)
	}

	wg.Wait()
	close(results)

	return collectErrors(logger, "update", results)
}

// FullCleanup deletes every repository's __patches__ directory concurrently.
func (m *Manager) FullCleanup() error {
	names, err := m.List()
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	results := make(chan result, len(names))

	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			repo, err := m.Open(name)
			if err != nil {
				results <- result{name: name, err: err}
				return
			}
			results <- result{name: name, err: repo.Cleanup()}
		}(name)
	}

	wg.Wait()
	close(results)

	return collectErrors(nil, "cleanup", results)
}

func (m *Manager) updateOne(ctx context.Context, name string) error {
	repo, err := m.Open(name)
	if err != nil {
		return err
	}
	return repo.Update(ctx)
}

// NotifyRepositoryChanged opens and updates the named repository. It
// satisfies webhook.UpdateNotifier without server importing webhook.
func (m *Manager) NotifyRepositoryChanged(ctx context.Context, name string) error {
	return m.updateOne(ctx, name)
}

func collectErrors(logger logctx.Logger, verb string, results <-chan result) error {
	var errs []error
	for r := range results {
		if r.err != nil {
			if logger != nil {
				logger.Errorf("server: %s failed for repository %s: %v", verb, r.name, r.err)
			}
			errs = append(errs, fmt.Errorf("%s: %w", r.name, r.err))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("server: %d repositories failed to %s: %v", len(errs), verb, errs)
}
