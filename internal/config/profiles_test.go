package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiliankoe/nback/internal/nback"
)

func TestBuiltinProfilesAreValid(t *testing.T) {
	p, err := LoadProfiles("")
	require.NoError(t, err)
	assert.Equal(t, []string{"easy", "hard", "standard"}, p.Names())
	for name, cfg := range p {
		assert.NoError(t, cfg.Validate(), name)
	}
	std, ok := p.Get("")
	require.True(t, ok)
	assert.Equal(t, 2, std.N)
	assert.Equal(t, 3, std.TotalBlocks)
}

func TestLoadProfilesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
profiles:
  marathon:
    totalBlocks: 5
    interval: 1800ms
    alphabet: [A, B, C, D]
  hard:
    n: 4
`), 0o644))

	p, err := LoadProfiles(path)
	require.NoError(t, err)

	m, ok := p.Get("marathon")
	require.True(t, ok)
	assert.Equal(t, 5, m.TotalBlocks)
	assert.Equal(t, 1800*time.Millisecond, m.Interval)
	assert.Equal(t, []string{"A", "B", "C", "D"}, m.Alphabet)
	assert.Equal(t, 2, m.N, "omitted fields keep defaults")
	assert.Equal(t, 20, m.ItemsPerBlock)

	h, _ := p.Get("hard")
	assert.Equal(t, 4, h.N)
	_, ok = p.Get("easy")
	assert.True(t, ok, "built-ins survive")
}

func TestLoadProfilesRejectsInvalid(t *testing.T) {
	_, err := parseProfiles([]byte("profiles:\n  broken:\n    alphabet: [A]\n"), BuiltinProfiles())
	assert.ErrorIs(t, err, nback.ErrInvalidConfig)

	_, err = parseProfiles([]byte("profiles: ["), BuiltinProfiles())
	assert.Error(t, err)

	_, err = LoadProfiles(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("HISTORY_LIMIT", "25")
	t.Setenv("EXPORT_ENABLED", "true")
	c := FromEnv()
	assert.Equal(t, "9000", c.Port)
	assert.Equal(t, "memory", c.StoreDriver)
	assert.Equal(t, 25, c.HistoryLimit)
	assert.True(t, c.ExportEnabled)
	assert.Equal(t, "info", c.LogLevel)
}
