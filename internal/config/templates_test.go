package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestListTemplates verifies that ListTemplates returns the expected set of
// templates embedded in the binary.
func TestListTemplates(t *testing.T) {
	names, err := ListTemplates()
	require.NoError(t, err)
	assert.Contains(t, names, "default", "default template must be listed")
	assert.Contains(t, names, "server", "server template must be listed")
}

// TestTemplateExists_known verifies that TemplateExists returns true for the
// embedded templates.
func TestTemplateExists_known(t *testing.T) {
	assert.True(t, TemplateExists("default"))
	assert.True(t, TemplateExists("server"))
}

// TestTemplateExists_unknown verifies that TemplateExists returns false for a
// non-existent template.
func TestTemplateExists_unknown(t *testing.T) {
	assert.False(t, TemplateExists("nonexistent"))
	assert.False(t, TemplateExists(""))
	assert.False(t, TemplateExists("../etc"))
}

// TestRenderTemplate_invalidName verifies that RenderTemplate returns an error
// when the requested template does not exist.
func TestRenderTemplate_invalidName(t *testing.T) {
	dir := t.TempDir()
	_, err := RenderTemplate("nonexistent", dir, TemplateVars{}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

// TestRenderTemplate_createsSpsToml verifies that the .tmpl file is rendered
// and the extension is stripped (sps.toml.tmpl -> sps.toml).
func TestRenderTemplate_createsSpsToml(t *testing.T) {
	dir := t.TempDir()
	vars := TemplateVars{
		ProjectName:    "test-project",
		DefaultContext: "inbox",
		StorePath:      ".sps/badger",
	}

	created, err := RenderTemplate("default", dir, vars, false)
	require.NoError(t, err)

	tomlPath := filepath.Join(dir, "sps.toml")
	assert.FileExists(t, tomlPath, "sps.toml must be created (extension stripped from .tmpl)")

	// The .tmpl source must NOT appear.
	assert.NoFileExists(t, filepath.Join(dir, "sps.toml.tmpl"))

	// Confirm it's in the created list.
	assert.Contains(t, created, tomlPath)
}

// TestRenderTemplate_substitutesVars verifies that TemplateVars fields are
// correctly substituted into .tmpl files.
func TestRenderTemplate_substitutesVars(t *testing.T) {
	tests := []struct {
		name       string
		template   string
		vars       TemplateVars
		wantInToml []string
	}{
		{
			name:     "default template",
			template: "default",
			vars: TemplateVars{
				ProjectName:    "awesome-backlog",
				DefaultContext: "inbox",
				StorePath:      ".sps/badger",
			},
			wantInToml: []string{
				`name = "awesome-backlog"`,
				`default_context = "inbox"`,
				`path = ".sps/badger"`,
			},
		},
		{
			name:     "server template",
			template: "server",
			vars: TemplateVars{
				ProjectName:    "shared-backlog",
				DefaultContext: "triage",
				Addr:           "0.0.0.0:8321",
			},
			wantInToml: []string{
				`name = "shared-backlog"`,
				`default_context = "triage"`,
				`addr = "0.0.0.0:8321"`,
				`backend = "postgres"`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			_, err := RenderTemplate(tt.template, dir, tt.vars, false)
			require.NoError(t, err)

			content, err := os.ReadFile(filepath.Join(dir, "sps.toml"))
			require.NoError(t, err)

			for _, want := range tt.wantInToml {
				assert.Contains(t, string(content), want, "sps.toml must contain %q", want)
			}
		})
	}
}

// TestRenderTemplate_renderedTomlIsValid verifies that the rendered sps.toml
// parses cleanly and resolves to a configuration with no validation errors.
func TestRenderTemplate_renderedTomlIsValid(t *testing.T) {
	for _, name := range []string{"default", "server"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			vars := TemplateVars{
				ProjectName:    "integration-test",
				DefaultContext: "inbox",
				StorePath:      ".sps/badger",
				Addr:           "127.0.0.1:8321",
			}

			_, err := RenderTemplate(name, dir, vars, false)
			require.NoError(t, err)

			tomlPath := filepath.Join(dir, "sps.toml")
			cfg, md, err := LoadFromFile(tomlPath)
			require.NoError(t, err, "rendered sps.toml must be valid TOML")
			assert.Equal(t, "integration-test", cfg.Project.Name)
			assert.Empty(t, md.Undecoded(), "rendered sps.toml must not contain unknown keys")

			rc := Resolve(NewDefaults(), cfg, nil, nil)
			vr := Validate(rc.Config, &md)
			assert.False(t, vr.HasErrors(),
				"rendered %s template must validate, got: %v", name, vr.Errors())
		})
	}
}

// TestRenderTemplate_createsGitignore verifies that the dotfile in the default
// template is copied as-is.
func TestRenderTemplate_createsGitignore(t *testing.T) {
	dir := t.TempDir()
	_, err := RenderTemplate("default", dir, TemplateVars{
		ProjectName: "p",
	}, false)
	require.NoError(t, err)

	gitignorePath := filepath.Join(dir, ".gitignore")
	assert.FileExists(t, gitignorePath)

	content, err := os.ReadFile(gitignorePath)
	require.NoError(t, err)
	assert.Contains(t, string(content), ".sps/")
	assert.False(t, strings.Contains(string(content), "{{"),
		"static file must not contain unresolved template syntax")
}

// TestRenderTemplate_doesNotOverwriteExistingFiles verifies that RenderTemplate
// skips files that already exist in the destination directory.
func TestRenderTemplate_doesNotOverwriteExistingFiles(t *testing.T) {
	dir := t.TempDir()

	// Pre-create sps.toml with known content.
	tomlPath := filepath.Join(dir, "sps.toml")
	originalContent := "# original content\n"
	err := os.WriteFile(tomlPath, []byte(originalContent), 0o644)
	require.NoError(t, err)

	// RenderTemplate must not overwrite the existing file.
	_, err = RenderTemplate("default", dir, TemplateVars{
		ProjectName: "should-not-appear",
	}, false)
	require.NoError(t, err)

	content, err := os.ReadFile(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, originalContent, string(content),
		"existing sps.toml must not be overwritten")
	assert.NotContains(t, string(content), "should-not-appear")
}

// TestRenderTemplate_forceOverwrites verifies that force replaces existing files.
func TestRenderTemplate_forceOverwrites(t *testing.T) {
	dir := t.TempDir()

	tomlPath := filepath.Join(dir, "sps.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("# old\n"), 0o644))

	_, err := RenderTemplate("default", dir, TemplateVars{
		ProjectName: "fresh-start",
	}, true)
	require.NoError(t, err)

	content, err := os.ReadFile(tomlPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), `name = "fresh-start"`)
}

// TestRenderTemplate_filePermissions verifies that created files are not
// world-readable; a rendered config may carry a DSN with credentials.
func TestRenderTemplate_filePermissions(t *testing.T) {
	dir := t.TempDir()
	_, err := RenderTemplate("default", dir, TemplateVars{
		ProjectName: "perm-test",
	}, false)
	require.NoError(t, err)

	tomlInfo, err := os.Stat(filepath.Join(dir, "sps.toml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), tomlInfo.Mode().Perm(),
		"sps.toml must have 0600 permissions")
}

// TestRenderTemplate_returnedPathsAreAbsolute verifies that RenderTemplate
// returns paths rooted in destDir.
func TestRenderTemplate_returnedPathsAreAbsolute(t *testing.T) {
	dir := t.TempDir()
	created, err := RenderTemplate("default", dir, TemplateVars{
		ProjectName: "abs-test",
	}, false)
	require.NoError(t, err)
	require.NotEmpty(t, created)

	for _, p := range created {
		assert.True(t, filepath.IsAbs(p), "created path %q must be absolute", p)
	}
}

// TestRenderTemplate_allExpectedFiles verifies the complete set of files
// created by the default template.
func TestRenderTemplate_allExpectedFiles(t *testing.T) {
	dir := t.TempDir()
	created, err := RenderTemplate("default", dir, TemplateVars{
		ProjectName: "count-test",
	}, false)
	require.NoError(t, err)

	relPaths := make(map[string]bool, len(created))
	for _, p := range created {
		rel, err := filepath.Rel(dir, p)
		require.NoError(t, err)
		relPaths[filepath.ToSlash(rel)] = true
	}

	expected := []string{
		"sps.toml",
		".gitignore",
	}

	for _, want := range expected {
		assert.True(t, relPaths[want], "expected file %q to be in created list", want)
	}

	assert.Equal(t, len(expected), len(created),
		"number of created files must match expected count")
}
