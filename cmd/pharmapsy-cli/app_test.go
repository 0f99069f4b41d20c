package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/bcrypt"
)

func memoryEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PHARMAPSY_DATABASE_DRIVER", "memory")
	t.Setenv("PHARMAPSY_BACKUP_DIRECTORY", dir)
	t.Setenv("PHARMAPSY_RABBITMQ_URL", "")
	t.Setenv("PHARMAPSY_SERVER_ENVIRONMENT", "development")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := newApp()
	a.Writer = &out
	a.ErrWriter = &errOut
	a.ExitErrHandler = func(c *cli.Context, err error) {}
	err := a.Run(append([]string{serviceName}, args...))
	return out.String(), err
}

func TestHashPassword(t *testing.T) {
	out, err := run(t, "hash-password", "--password", "secret123")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret123")))

	_, err = run(t, "hash-password", "--password", "abc")
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	dir := memoryEnv(t)

	file := filepath.Join(dir, "out.json")
	out, err := run(t, "export", "--out", file)
	require.NoError(t, err)
	assert.Contains(t, out, file)

	blob, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.True(t, json.Valid(blob))

	out, err = run(t, "export")
	require.NoError(t, err)
	assert.Contains(t, out, "BKP")
	assert.Contains(t, out, dir)
}

func TestImport(t *testing.T) {
	dir := memoryEnv(t)

	file := filepath.Join(dir, "in.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"medications":[{"id":"m1","dci":"X","commercialNom":"A","fullNom":"A"}]}`), 0o600))

	out, err := run(t, "import", file)
	require.NoError(t, err)
	assert.Contains(t, out, "_pre_import.json")

	_, err = run(t, "import")
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[]`), 0o600))
	_, err = run(t, "import", bad)
	assert.Error(t, err)
}

func TestReportSummary(t *testing.T) {
	memoryEnv(t)

	out, err := run(t, "report", "summary", "--year", "2024", "--season", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "1ER TRIMESTRE 2024")
	assert.Contains(t, out, "MEDICATION")
	assert.Contains(t, out, "TOTAL")

	_, err = run(t, "report", "summary", "--season", "7")
	assert.Error(t, err)
}

func TestReportWorkbook(t *testing.T) {
	dir := memoryEnv(t)

	file := filepath.Join(dir, "etat.xlsx")
	_, err := run(t, "report", "workbook", "--year", "2024", "--months", "MARS", "--out", file)
	require.NoError(t, err)

	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestBootstrapAndMigrate(t *testing.T) {
	memoryEnv(t)

	out, err := run(t, "bootstrap")
	require.NoError(t, err)
	assert.Contains(t, out, "created SI-")

	out, err = run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "0 migration(s) applied")
}

func TestRequestBackup_NoBroker(t *testing.T) {
	memoryEnv(t)

	_, err := run(t, "request-backup")
	assert.Error(t, err)
}
