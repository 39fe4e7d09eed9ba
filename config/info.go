package config

import (
	"encoding/json"
	"os"
)

// InfoFileName is the name of the per-repository metadata file, on both
// server and client sides.
const InfoFileName = "info.json"

// RepositoryInfo is the persisted `info.json` metadata spec.md §3 and §6
// describe: name, first/latest version, strategy tag, plus the client-only
// url/current_version/protocol fields. On the wire it is nested under a
// "config" key (`{"config": {...}}`), which infoWire models.
type RepositoryInfo struct {
	Name          string `json:"name"`
	FirstVersion  string `json:"first_version"`
	LatestVersion string `json:"latest_version"`
	Strategy      string `json:"strategy"`

	// URL, CurrentVersion, and Protocol are set on client-side repositories
	// only.
	URL            string `json:"url,omitempty"`
	CurrentVersion string `json:"current_version,omitempty"`
	Protocol       int    `json:"protocol,omitempty"`
}

type infoWire struct {
	Config RepositoryInfo `json:"config"`
}

// LoadRepositoryInfo reads and parses the info.json at path.
func LoadRepositoryInfo(path string) (*RepositoryInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var w infoWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return &w.Config, nil
}

// Save serializes info as JSON to path, nested under the "config" key.
func (info *RepositoryInfo) Save(path string) error {
	data, err := json.MarshalIndent(infoWire{Config: *info}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
