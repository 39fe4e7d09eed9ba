// Package server implements the server-side repository lifecycle: scanning
// a directory of version snapshots, invoking PatchStrategy to decide which
// patches are missing, running CompareTask to produce them, and persisting
// the repository's metadata and version graph.
package server

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/brutus5000/bireus/bierrors"
	"github.com/brutus5000/bireus/comparetask"
	"github.com/brutus5000/bireus/config"
	"github.com/brutus5000/bireus/content"
	"github.com/brutus5000/bireus/logctx"
	"github.com/brutus5000/bireus/strategy"
	"github.com/brutus5000/bireus/versiongraph"
)

// PatchesDirName is the reserved subdirectory holding generated patch
// archives; it is never treated as a version snapshot.
const PatchesDirName = "__patches__"

// LatestArchiveName is the xz-tar snapshot of the latest version, served at
// <repo>/latest.tar.xz.
const LatestArchiveName = "latest.tar.xz"

// reservedNames lists directory entries under a repository root that are
// never treated as version snapshots.
var reservedNames = map[string]bool{
	PatchesDirName: true,
	".delta_to":    true,
}

// Repository is one server-side BiReUS repository: a directory containing
// version snapshot subdirectories, info.json, and versions.gml.
type Repository struct {
	Path     string
	Info     *config.RepositoryInfo
	Graph    *versiongraph.Graph
	Strategy strategy.Strategy
}

// Create scaffolds a new repository under parentDir: a directory named
// name, an empty firstVersion subdirectory, info.json, and an initial
// version graph from strat.
func Create(parentDir, name, firstVersion string, strat strategy.Strategy) (*Repository, error) {
	path := filepath.Join(parentDir, name)
	if err := os.MkdirAll(filepath.Join(path, firstVersion), 0o755); err != nil {
		return nil, err
	}

	repo := &Repository{
		Path: path,
		Info: &config.RepositoryInfo{
			Name:          name,
			FirstVersion:  firstVersion,
			LatestVersion: firstVersion,
			Strategy:      strat.Tag(),
		},
		Graph:    strat.InitialGraph(firstVersion),
		Strategy: strat,
	}

	if err := repo.persist(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Open loads an existing repository at path.
func Open(path string) (*Repository, error) {
	fi, err := os.Stat(path)
	if err != nil || !fi.IsDir() {
		return nil, &bierrors.InvalidRepositoryPath{Path: path}
	}

	infoPath := filepath.Join(path, config.InfoFileName)
	if _, err := os.Stat(infoPath); os.IsNotExist(err) {
		return nil, &bierrors.RepositoryNotFound{Path: path}
	}

	info, err := config.LoadRepositoryInfo(infoPath)
	if err != nil {
		return nil, err
	}

	graph, err := versiongraph.Load(filepath.Join(path, versiongraph.GraphFileName))
	if err != nil {
		return nil, err
	}

	strat, err := strategy.Parse(info.Strategy)
	if err != nil {
		return nil, err
	}

	return &Repository{Path: path, Info: info, Graph: graph, Strategy: strat}, nil
}

func (r *Repository) persist() error {
	if err := r.Info.Save(filepath.Join(r.Path, config.InfoFileName)); err != nil {
		return err
	}
	return versiongraph.Write(r.Graph, filepath.Join(r.Path, versiongraph.GraphFileName))
}

// snapshotVersions returns the version subdirectories present on disk,
// lexicographically sorted, excluding reserved names.
func (r *Repository) snapshotVersions() ([]string, error) {
	entries, err := os.ReadDir(r.Path)
	if err != nil {
		return nil, err
	}

	var versions []string
	for _, e := range entries {
		if !e.IsDir() || reservedNames[e.Name()] {
			continue
		}
		versions = append(versions, e.Name())
	}
	sort.Strings(versions)
	return versions, nil
}

// Update scans the repository for snapshot directories, packs the
// lexicographically-largest one as latest.tar.xz, and for every directory
// not yet present in the version graph, invokes the strategy to enumerate
// required patches and runs CompareTask for each, per spec.md §4.5.
func (r *Repository) Update(ctx context.Context, opts ...comparetask.Option) error {
	logger := logctx.GetLogger(ctx)

	versions, err := r.snapshotVersions()
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return nil
	}

	latest := versions[len(versions)-1]
	if err := content.PackXZTar(filepath.Join(r.Path, latest), filepath.Join(r.Path, LatestArchiveName)); err != nil {
		return err
	}

	compareOpts := append([]comparetask.Option{comparetask.WithDeltaFile()}, opts...)

	for _, v := range versions {
		if r.Graph.HasNode(v) {
			continue
		}

		previousLatest := r.Info.LatestVersion
		pairs, err := r.Strategy.Plan(r.Graph, previousLatest, v)
		if err != nil {
			return err
		}

		for _, pair := range pairs {
			logger.Infof("server: comparing %s -> %s for repository %s", pair.From, pair.To, r.Info.Name)
			if _, err := comparetask.Run(ctx, r.Path, r.Info.Name, pair.From, pair.To, compareOpts...); err != nil {
				return err
			}
		}

		r.Info.LatestVersion = v
		logger.Infof("server: repository %s latest version now %s", r.Info.Name, v)
	}

	return r.persist()
}

// Cleanup deletes the __patches__ folder. The version graph and info.json
// are left unchanged, so a later Update does not regenerate archives for
// versions that are already nodes of the graph.
func (r *Repository) Cleanup() error {
	return os.RemoveAll(filepath.Join(r.Path, PatchesDirName))
}
