package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/kim/i18n"
)

const userSchema = `name: user
roles:
  public: {fields: [password]}
fields:
  - {name: id, type: integer, required: true}
  - {name: name, type: string, required: true}
  - {name: balance, type: decimal, precision: 2}
  - {name: password, type: string}
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	t.Cleanup(func() { i18n.SetLanguage("en") })
	var out, errb bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &out, &errb)
	return code, out.String(), errb.String()
}

func TestRun_Marshal(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "user.yaml", userSchema)

	code, out, stderr := runCLI(t, `{"id": "7", "name": "Mei", "balance": 3.456}`, "marshal", "-schema", schema)
	require.Equal(t, exitOK, code, stderr)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, map[string]any{"id": float64(7), "name": "Mei", "balance": "3.46"}, got)
}

func TestRun_MarshalYAMLInputFile(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "user.yaml", userSchema)
	in := writeFile(t, dir, "in.yml", "id: 1\nname: Ren\n")

	code, out, stderr := runCLI(t, "", "marshal", "-schema", schema, "-in", in)
	require.Equal(t, exitOK, code, stderr)
	assert.JSONEq(t, `{"id": 1, "name": "Ren"}`, out)
}

func TestRun_MarshalIssues(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "user.yaml", userSchema)

	code, out, _ := runCLI(t, `{"id": "x"}`, "marshal", "-schema", schema)
	require.Equal(t, exitInvalid, code)
	var rep struct {
		Issues []struct {
			Path string `json:"path"`
			Code string `json:"code"`
		} `json:"issues"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Len(t, rep.Issues, 2)
	assert.Equal(t, "/id", rep.Issues[0].Path)
	assert.Equal(t, "type_error", rep.Issues[0].Code)
	assert.Equal(t, "/name", rep.Issues[1].Path)

	code, out, _ = runCLI(t, `{"id": "x"}`, "marshal", "-schema", schema, "-fail-fast")
	require.Equal(t, exitInvalid, code)
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Len(t, rep.Issues, 1)
}

func TestRun_DuplicateKeysAreIssues(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "user.yaml", userSchema)
	code, out, _ := runCLI(t, `{"id": 1, "id": 2, "name": "a"}`, "marshal", "-schema", schema)
	require.Equal(t, exitInvalid, code)
	assert.Contains(t, out, "duplicate_key")
}

func TestRun_JapaneseMessages(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "user.yaml", userSchema)
	t.Setenv("KIM_LANG", "ja")

	code, out, _ := runCLI(t, `{"id": 1}`, "marshal", "-schema", schema)
	require.Equal(t, exitInvalid, code)
	assert.NotContains(t, out, "This is a required field")
}

func TestRun_SerializeWithRole(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "user.yaml", userSchema)

	code, out, stderr := runCLI(t, `{"id": 1, "name": "Sora", "balance": "2.5", "password": "pw"}`,
		"serialize", "-schema", schema, "-role", "public")
	require.Equal(t, exitOK, code, stderr)
	assert.JSONEq(t, `{"id": 1, "name": "Sora", "balance": "2.50"}`, out)

	code, _, stderr = runCLI(t, `{"id": 1}`, "serialize", "-schema", schema)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "schema error")
}

func TestRun_Schema(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "user.yaml", userSchema)

	code, out, stderr := runCLI(t, "", "schema", "-schema", schema)
	require.Equal(t, exitOK, code, stderr)
	var s map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, "user", s["title"])
	assert.Equal(t, []any{"id", "name"}, s["required"])
}

func TestRun_UsageErrors(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "user.yaml", userSchema)

	cases := [][]string{
		{},
		{"bogus"},
		{"marshal"},
		{"marshal", "-schema", filepath.Join(dir, "missing.yaml")},
		{"marshal", "-schema", schema, "-role", "nope"},
		{"marshal", "-nope"},
	}
	for _, args := range cases {
		code, _, _ := runCLI(t, `{}`, args...)
		assert.Equal(t, exitUsage, code, "%v", args)
	}

	code, _, _ := runCLI(t, `[1]`, "marshal", "-schema", schema)
	assert.Equal(t, exitUsage, code)

	code, _, _ = runCLI(t, `{"id": 1, "name": "long"}`, "marshal", "-schema", schema, "-max-bytes", "4")
	assert.Equal(t, exitUsage, code)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("KIM_LANG", "ja")
	t.Setenv("KIM_LOG_LEVEL", "debug")
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, Config{Lang: "ja", LogLevel: "debug"}, cfg)

	t.Setenv("KIM_LOG_LEVEL", "loud")
	cfg, err = loadConfig()
	require.NoError(t, err)
	_, err = cfg.level()
	assert.Error(t, err)

	code, _, _ := runCLI(t, "", "schema")
	assert.Equal(t, exitUsage, code)
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("KIM_LANG", "")
	t.Setenv("KIM_LOG_LEVEL", "")
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "en", cfg.Lang)
	assert.Equal(t, "warn", cfg.LogLevel)
}
