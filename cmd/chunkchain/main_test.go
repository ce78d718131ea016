package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chunkchain/internal/backup"
	"chunkchain/internal/corpus"
	"chunkchain/internal/datadir"
	"chunkchain/internal/maintenance"
	"chunkchain/internal/samples"
)

type cli struct {
	t       *testing.T
	dataDir string
}

func newCLI(t *testing.T) *cli {
	t.Setenv(datadir.EnvVar, "")
	t.Setenv(datadir.EnvFileEnvVar, "")
	return &cli{t: t, dataDir: t.TempDir()}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--data-dir", c.dataDir}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, "chunkchain %s", strings.Join(args, " "))
	return out
}

func (c *cli) runJSON(v any, args ...string) {
	c.t.Helper()
	out := c.mustRun(append(args, "--json")...)
	require.NoError(c.t, json.Unmarshal([]byte(out), v), out)
}

func (c *cli) addSample(args ...string) string {
	c.t.Helper()
	var s samples.Sample
	c.runJSON(&s, append([]string{"samples", "add"}, args...)...)
	require.NotEmpty(c.t, s.ID)
	return s.ID
}

func TestSamplesLifecycle(t *testing.T) {
	c := newCLI(t)

	id := c.addSample("-d", "abc", "abcabcabd")

	var list []samples.Sample
	c.runJSON(&list, "samples", "list")
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, "abcabcabd", list[0].Text)

	var notBuilt corpus.Result
	c.runJSON(&notBuilt, "generate", id)
	assert.Equal(t, corpus.ChunksNotBuilt, notBuilt.Message)

	var analyses []corpus.Analysis
	c.runJSON(&analyses, "analyse", id)
	require.Len(t, analyses, 1)
	assert.Equal(t, 9, analyses[0].Atoms)
	assert.NotEmpty(t, analyses[0].Sizes)

	var first, second corpus.Result
	c.runJSON(&first, "generate", id, "--chunk-size", "2", "--output-length", "5", "--seed", "3")
	c.runJSON(&second, "generate", id, "--chunk-size", "2", "--output-length", "5", "--seed", "3")
	require.Len(t, first.Output, 1)
	assert.Equal(t, 2, first.Output[0].ChunkSize)
	assert.Equal(t, first, second)

	var detail struct {
		ID     string                    `json:"id"`
		Chunks map[string]map[string]int `json:"chunks"`
	}
	c.runJSON(&detail, "samples", "show", id)
	assert.Equal(t, id, detail.ID)
	assert.Equal(t, 4, detail.Chunks["word_chunk"]["2"]) // ab bc ca bd
	assert.Empty(t, detail.Chunks["sentence_chunk"])

	out := c.mustRun("samples", "delete", id)
	assert.Contains(t, out, id)

	c.runJSON(&list, "samples", "list")
	assert.Empty(t, list)

	_, err := c.run("samples", "show", id)
	assert.ErrorIs(t, err, samples.ErrSampleNotFound)
}

func TestSamplesAdd_Sources(t *testing.T) {
	c := newCLI(t)

	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "raven.html")
	require.NoError(t, os.WriteFile(htmlPath,
		[]byte(`<html><head><title>The Raven</title></head><body><p>Once upon a midnight dreary</p></body></html>`), 0644))
	textPath := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(textPath, []byte("plain notes"), 0644))

	var s samples.Sample
	c.runJSON(&s, "samples", "add", "--file", htmlPath)
	assert.Equal(t, "The Raven", s.Description)
	assert.Equal(t, "Once upon a midnight dreary", s.Text)

	c.runJSON(&s, "samples", "add", "--file", textPath)
	assert.Equal(t, "notes.txt", s.Description)
	assert.Equal(t, "plain notes", s.Text)

	_, err := c.run("samples", "add")
	assert.Error(t, err)
}

func TestSamplesUpdate(t *testing.T) {
	c := newCLI(t)
	id := c.addSample("-d", "first", "--analyse", "abababab")

	c.mustRun("samples", "update", id, "-d", "second", "xyzxyz")

	var detail struct {
		Description string                    `json:"description"`
		Text        string                    `json:"text"`
		Chunks      map[string]map[string]int `json:"chunks"`
	}
	c.runJSON(&detail, "samples", "show", id)
	assert.Equal(t, "second", detail.Description)
	assert.Equal(t, "xyzxyz", detail.Text)
	assert.Empty(t, detail.Chunks["word_chunk"], "chunks of the old text are dropped")
}

func TestSettings(t *testing.T) {
	c := newCLI(t)

	assert.Equal(t, "all\n", c.mustRun("settings", "get", "chunk_size"))
	assert.Equal(t, "250\n", c.mustRun("settings", "get", "output_size"))

	c.mustRun("settings", "set", "chunk_size", "3")
	assert.Equal(t, "3\n", c.mustRun("settings", "get", "chunk_size"))

	out := c.mustRun("settings")
	assert.Contains(t, out, "stored")
	assert.Contains(t, out, "config")

	_, err := c.run("settings", "set", "output_size", "-1")
	assert.Error(t, err)
	_, err = c.run("settings", "get", "colour")
	assert.Error(t, err)

	c.mustRun("settings", "unset", "chunk_size")
	assert.Equal(t, "all\n", c.mustRun("settings", "get", "chunk_size"))
}

func TestSettingsDriveGeneration(t *testing.T) {
	c := newCLI(t)
	id := c.addSample("-d", "abc", "--analyse", "abcabcabcabd")

	c.mustRun("settings", "set", "chunk_size", "3")
	c.mustRun("settings", "set", "output_size", "4")

	var result corpus.Result
	c.runJSON(&result, "generate", id, "--seed", "9")
	require.Len(t, result.Output, 1)
	assert.Equal(t, 3, result.Output[0].ChunkSize)
	assert.LessOrEqual(t, len([]rune(result.Output[0].Text)), 4)
}

func TestTokens(t *testing.T) {
	c := newCLI(t)
	id := c.addSample("--strategy", "sentence_chunk", "-d", "pets", "--analyse", "the cat, the dog")

	var rows []tokenRow
	c.runJSON(&rows, "tokens", "lookup", "the bird")
	require.Len(t, rows, 3)
	assert.Equal(t, "the", rows[0].Token)
	assert.True(t, rows[0].Known)
	assert.Equal(t, " ", rows[1].Token)
	assert.True(t, rows[1].Known)
	assert.Equal(t, "bird", rows[2].Token)
	assert.False(t, rows[2].Known)

	// the, " ", cat, ",", dog
	assert.Equal(t, "5\n", c.mustRun("tokens", "count"))

	out := c.mustRun("tokens", "resolve", "1")
	assert.Contains(t, out, `"the"`)

	_, err := c.run("tokens", "resolve", "999")
	assert.Error(t, err)

	var result corpus.Result
	c.runJSON(&result, "--strategy", "sentence_chunk", "generate", id, "--chunk-size", "2", "--seed", "1")
	assert.Equal(t, "sentence_chunk", string(result.Strategy))
	require.Len(t, result.Output, 1)
}

func TestAnalyseArgs(t *testing.T) {
	c := newCLI(t)
	c.addSample("-d", "one", "hello hello")
	c.addSample("-d", "two", "world world")

	var analyses []corpus.Analysis
	c.runJSON(&analyses, "analyse", "--all")
	assert.Len(t, analyses, 2)

	_, err := c.run("analyse")
	assert.Error(t, err)
	_, err = c.run("analyse", "--all", "some-id")
	assert.Error(t, err)
}

func TestMaintenanceRun(t *testing.T) {
	c := newCLI(t)
	c.addSample("-d", "x", "--analyse", "abcabc")

	results := map[string]maintenance.TaskResult{}
	c.runJSON(&results, "maintenance", "run")
	require.Contains(t, results, "orphan_chunk_cleanup")
	require.Contains(t, results, "database_maintenance")
	assert.True(t, results["orphan_chunk_cleanup"].Success)
	assert.Equal(t, 0, results["orphan_chunk_cleanup"].RecordsProcessed)

	status := map[string]maintenance.TaskStatus{}
	c.runJSON(&status, "maintenance", "status")
	require.Len(t, status, 2)
	assert.True(t, status["orphan_chunk_cleanup"].Destructive)
	assert.False(t, status["database_maintenance"].NextRun.IsZero())
}

func TestVersionCmd(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun("version")
	assert.True(t, strings.HasPrefix(out, "chunkchain "))
	assert.Contains(t, out, "Go version:")
}

func TestBackupRoundTrip(t *testing.T) {
	c := newCLI(t)
	id := c.addSample("-d", "abc", "abcabcabd")
	archive := filepath.Join(t.TempDir(), "corpus.tar.gz")

	var created backup.Result
	c.runJSON(&created, "backup", "create", "-o", archive)
	assert.Equal(t, archive, created.ArchivePath)
	assert.True(t, created.Components.Has(backup.ComponentDatabase))
	assert.True(t, created.Components.Has(backup.ComponentConfig), "default config is written on first run")

	var listed backup.ListResult
	c.runJSON(&listed, "backup", "list", archive)
	assert.Equal(t, 1, listed.Manifest.Database.Samples)

	c.mustRun("samples", "delete", id)

	_, err := c.run("backup", "restore", archive)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	var planned backup.RestoreResult
	c.runJSON(&planned, "backup", "restore", archive, "--dry-run")
	require.Len(t, planned.Planned, 2)
	assert.Zero(t, planned.FilesRestored)

	c.runJSON(&planned, "backup", "restore", archive, "--dry-run", "--skip-config")
	require.Len(t, planned.Planned, 1)
	assert.Equal(t, 1, planned.FilesSkipped)

	c.mustRun("backup", "restore", archive, "--force")

	var list []samples.Sample
	c.runJSON(&list, "samples", "list")
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
}
