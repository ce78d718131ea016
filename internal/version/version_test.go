package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func withBuildVars(t *testing.T, version, commit, tag, dirty string) {
	t.Helper()
	old := []string{Version, GitCommit, GitTag, GitDirty}
	Version, GitCommit, GitTag, GitDirty = version, commit, tag, dirty
	t.Cleanup(func() {
		Version, GitCommit, GitTag, GitDirty = old[0], old[1], old[2], old[3]
	})
}

func TestInfo(t *testing.T) {
	tests := []struct {
		name, version, tag, dirty, want string
	}{
		{"plain version", "1.2.0", "", "", "1.2.0"},
		{"tag wins", "1.2.0", "v1.3.0", "", "v1.3.0"},
		{"unknown tag ignored", "1.2.0", "unknown", "", "1.2.0"},
		{"dirty", "1.2.0", "", "true", "1.2.0-dirty"},
		{"dirty marker once", "1.2.0-dirty", "", "true", "1.2.0-dirty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withBuildVars(t, tt.version, "unknown", tt.tag, tt.dirty)
			assert.Equal(t, tt.want, Info())
		})
	}
}

func TestFull(t *testing.T) {
	withBuildVars(t, "1.0.0", "abcdef0123456789", "", "")
	assert.Equal(t, "1.0.0 (abcdef0)", Full())

	withBuildVars(t, "1.0.0", "abc", "", "")
	assert.Equal(t, "1.0.0 (abc)", Full())

	withBuildVars(t, "1.0.0", "unknown", "", "")
	assert.Equal(t, "1.0.0", Full())
}

func TestUserAgent(t *testing.T) {
	withBuildVars(t, "0.9.1", "unknown", "", "")
	assert.Equal(t, "chunkchain/0.9.1", UserAgent())
	assert.True(t, GetBuildInfo().GoVersion != "")
}
