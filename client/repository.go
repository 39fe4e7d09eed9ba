// Package client implements ClientRepository: routing a checkout request
// through the version graph via shortest path, downloading missing patch
// archives, and driving PatchTask hop by hop against a working tree.
package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/brutus5000/bireus/bierrors"
	"github.com/brutus5000/bireus/config"
	"github.com/brutus5000/bireus/content"
	"github.com/brutus5000/bireus/diffmodel"
	"github.com/brutus5000/bireus/logctx"
	"github.com/brutus5000/bireus/patchtask"
	"github.com/brutus5000/bireus/transport"
	"github.com/brutus5000/bireus/versiongraph"
)

// metadataDirName is the working tree's reserved metadata subdirectory.
const metadataDirName = ".bireus"

// latestArchiveName is the snapshot archive name served at the repository
// root, matching server.LatestArchiveName without importing the server
// package.
const latestArchiveName = "latest.tar.xz"

// patchesPathSegment is the URL path segment under which patch archives are
// served, matching server.PatchesDirName.
const patchesPathSegment = "__patches__"

// tempDirName is the working tree's scratch subdirectory, per spec.md §6.
const tempDirName = "__temp__"

// Repository is a client-side working tree tracked against a remote
// BiReUS repository.
type Repository struct {
	Path       string
	Info       *config.RepositoryInfo
	Graph      *versiongraph.Graph
	Downloader transport.Downloader
}

func metaDir(path string) string {
	return filepath.Join(path, metadataDirName)
}

// Open loads an already-checked-out working tree at path.
func Open(path string, downloader transport.Downloader) (*Repository, error) {
	dir := metaDir(path)
	infoPath := filepath.Join(dir, config.InfoFileName)
	if _, err := os.Stat(infoPath); os.IsNotExist(err) {
		return nil, &bierrors.RepositoryNotFound{Path: path}
	}

	info, err := config.LoadRepositoryInfo(infoPath)
	if err != nil {
		return nil, err
	}

	graph, err := versiongraph.Load(filepath.Join(dir, versiongraph.GraphFileName))
	if err != nil {
		return nil, err
	}

	return &Repository{Path: path, Info: info, Graph: graph, Downloader: downloader}, nil
}

// GetFromURL bootstraps a brand-new working tree at path by downloading
// info.json, versions.gml, and latest.tar.xz from url and unpacking the
// snapshot, per spec.md §4.7's get_from_url.
func GetFromURL(ctx context.Context, path, url string, downloader transport.Downloader) (*Repository, error) {
	dir := metaDir(path)
	tempDir := filepath.Join(dir, tempDirName)
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, err
	}
	defer os.RemoveAll(tempDir)

	infoPath := filepath.Join(dir, config.InfoFileName)
	if err := downloader.Download(ctx, url+"/"+config.InfoFileName, infoPath); err != nil {
		return nil, err
	}

	graphPath := filepath.Join(dir, versiongraph.GraphFileName)
	if err := downloader.Download(ctx, url+"/"+versiongraph.GraphFileName, graphPath); err != nil {
		return nil, err
	}

	archivePath := filepath.Join(tempDir, latestArchiveName)
	if err := downloader.Download(ctx, url+"/"+latestArchiveName, archivePath); err != nil {
		return nil, err
	}
	if err := content.UnpackXZTar(archivePath, path); err != nil {
		return nil, err
	}

	info, err := config.LoadRepositoryInfo(infoPath)
	if err != nil {
		return nil, err
	}
	info.URL = url
	info.CurrentVersion = info.LatestVersion
	info.Protocol = diffmodel.SupportedProtocol

	graph, err := versiongraph.Load(graphPath)
	if err != nil {
		return nil, err
	}

	repo := &Repository{Path: path, Info: info, Graph: graph, Downloader: downloader}
	if err := repo.persist(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *Repository) persist() error {
	return r.Info.Save(filepath.Join(metaDir(r.Path), config.InfoFileName))
}

// updateRepoInfo refreshes info.json and versions.gml from the remote,
// preserving the locally-owned url/current_version/protocol fields.
func (r *Repository) updateRepoInfo(ctx context.Context) error {
	dir := metaDir(r.Path)
	infoPath := filepath.Join(dir, config.InfoFileName)
	graphPath := filepath.Join(dir, versiongraph.GraphFileName)

	if err := r.Downloader.Download(ctx, r.Info.URL+"/"+config.InfoFileName, infoPath); err != nil {
		return err
	}
	if err := r.Downloader.Download(ctx, r.Info.URL+"/"+versiongraph.GraphFileName, graphPath); err != nil {
		return err
	}

	newInfo, err := config.LoadRepositoryInfo(infoPath)
	if err != nil {
		return err
	}
	newGraph, err := versiongraph.Load(graphPath)
	if err != nil {
		return err
	}

	newInfo.URL = r.Info.URL
	newInfo.CurrentVersion = r.Info.CurrentVersion
	newInfo.Protocol = r.Info.Protocol

	r.Info = newInfo
	r.Graph = newGraph
	return r.persist()
}

// CheckoutVersion routes the working tree from its current version to v,
// per spec.md §4.7.
func (r *Repository) CheckoutVersion(ctx context.Context, v string) error {
	if r.Info.CurrentVersion == v {
		return nil
	}

	if !r.Graph.HasNode(v) {
		if err := r.updateRepoInfo(ctx); err != nil {
			return err
		}
		if !r.Graph.HasNode(v) {
			return &bierrors.CheckoutError{Reason: bierrors.ReasonUnknownVersion}
		}
	}

	edges, ok := r.Graph.ShortestPath(r.Info.CurrentVersion, v)
	if !ok {
		return &bierrors.CheckoutError{Reason: bierrors.ReasonNoPath}
	}

	logger := logctx.GetLogger(ctx)
	task := patchtask.New(r.Downloader, r.Info.URL)
	dir := metaDir(r.Path)

	for _, edge := range edges {
		archiveName := fmt.Sprintf("%s_to_%s.tar.xz", edge.From, edge.To)
		archivePath := filepath.Join(dir, archiveName)

		if _, err := os.Stat(archivePath); os.IsNotExist(err) {
			logger.Infof("client: downloading patch %s", archiveName)
			patchURL := r.Info.URL + "/" + patchesPathSegment + "/" + archiveName
			if err := r.Downloader.Download(ctx, patchURL, archivePath); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		logger.Infof("client: applying patch %s -> %s", edge.From, edge.To)
		if err := task.Apply(ctx, archivePath, r.Path); err != nil {
			return err
		}

		r.Info.CurrentVersion = edge.To
		if err := r.persist(); err != nil {
			return err
		}
	}

	return nil
}

// CheckoutLatest refreshes metadata (tolerating a network failure by
// falling back to the locally cached view) and checks out LatestVersion.
func (r *Repository) CheckoutLatest(ctx context.Context) error {
	if err := r.updateRepoInfo(ctx); err != nil {
		logctx.GetLogger(ctx).Warnf("client: metadata refresh failed, using local view: %v", err)
	}
	return r.CheckoutVersion(ctx, r.Info.LatestVersion)
}
