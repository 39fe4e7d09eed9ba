package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaultsAndEnvOverride(t *testing.T) {
	t.Setenv("BIREUS_LOG_LEVEL", "debug")

	yaml := `
server:
  rootdir: /srv/bireus
http:
  addr: ":5050"
`
	c, err := Parse(strings.NewReader(yaml))
	require.NoError(t, err)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "/srv/bireus", c.Server.RootDir)
	assert.Equal(t, ":5050", c.HTTP.Addr)
}

func TestParseRequiresRootDir(t *testing.T) {
	_, err := Parse(strings.NewReader("log:\n  level: info\n"))
	assert.Error(t, err)
}

func TestRepositoryInfoRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "info.json")

	info := &RepositoryInfo{
		Name:          "demo",
		FirstVersion:  "v1",
		LatestVersion: "v2",
		Strategy:      "inc-bi",
		URL:           "https://example.invalid/demo",
		CurrentVersion: "v1",
	}
	require.NoError(t, info.Save(path))

	loaded, err := LoadRepositoryInfo(path)
	require.NoError(t, err)
	assert.Equal(t, info, loaded)

	_, err = os.Stat(path)
	require.NoError(t, err)
}
