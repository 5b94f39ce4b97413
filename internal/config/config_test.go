package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	configPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(configPath, []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return configPath
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.RefCode != def.RefCode {
		t.Fatalf("RefCode = %q, want %q", cfg.RefCode, def.RefCode)
	}
	if cfg.Archive != def.Archive {
		t.Fatalf("Archive = %q, want %q", cfg.Archive, def.Archive)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.Template != "" {
		t.Fatalf("Template = %q, want empty (bundled default)", cfg.Template)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{"ref_code": "/cell", "compression_level": 9, "log_level": "debug"}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RefCode != "/cell" {
		t.Errorf("RefCode = %q, want /cell", cfg.RefCode)
	}
	if cfg.CompressionLevel != 9 {
		t.Errorf("CompressionLevel = %d, want 9", cfg.CompressionLevel)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Archive != DefaultConfig().Archive {
		t.Errorf("Archive = %q, want default", cfg.Archive)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{not json}`)

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_DisabledTools(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{"disabled_tools": ["hive_set", "hive_import"]}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.DisabledTools) != 2 {
		t.Fatalf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
	if cfg.DisabledTools[0] != "hive_set" || cfg.DisabledTools[1] != "hive_import" {
		t.Errorf("DisabledTools = %v, want [hive_set hive_import]", cfg.DisabledTools)
	}
}

func TestLoadWithRepo_BothPresent(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	writeConfig(t, globalDir, `{"ref_code": "/global", "disabled_tools": ["hive_set"]}`)
	writeConfig(t, filepath.Join(repoRoot, DirName), `{"ref_code": "/repo", "disabled_tools": ["hive_import"]}`)

	cfg, err := LoadWithRepo(globalDir, repoRoot)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.RefCode != "/repo" {
		t.Errorf("RefCode = %q, want /repo (repo override)", cfg.RefCode)
	}
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	cfg, err := LoadWithRepo(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.RefCode != "/ref" {
		t.Errorf("RefCode = %q, want /ref", cfg.RefCode)
	}
	if len(cfg.DisabledTools) != 0 {
		t.Errorf("DisabledTools = %v, want empty", cfg.DisabledTools)
	}
}

func TestLoadWithRepo_RelativeTemplate(t *testing.T) {
	repoRoot := t.TempDir()
	writeConfig(t, filepath.Join(repoRoot, DirName), `{"template": "templates/survey.template"}`)

	subdir := filepath.Join(repoRoot, "data", "2024")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	cfg, err := LoadWithRepo(t.TempDir(), subdir)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	want := filepath.Join(repoRoot, "templates", "survey.template")
	if cfg.Template != want {
		t.Errorf("Template = %q, want %q", cfg.Template, want)
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{RefCode: "/ref", CompressionLevel: 5, Archive: "a.hdf5"}
	overlay := &Config{RefCode: "/cell", Archive: "  "}

	result := Merge(base, overlay)

	if result.RefCode != "/cell" {
		t.Errorf("RefCode = %q, want /cell (overlay)", result.RefCode)
	}
	if result.CompressionLevel != 5 {
		t.Errorf("CompressionLevel = %d, want 5 (base, overlay is zero)", result.CompressionLevel)
	}
	if result.Archive != "a.hdf5" {
		t.Errorf("Archive = %q, want a.hdf5 (blank overlay ignored)", result.Archive)
	}
}

func TestMerge_BooleanOr(t *testing.T) {
	result := Merge(&Config{AllowUnsafePaths: true}, &Config{AllowUnsafePaths: false})
	if !result.AllowUnsafePaths {
		t.Error("AllowUnsafePaths should be true (base OR overlay)")
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	base := &Config{AllowedPaths: []string{"/data", " /exports "}}
	overlay := &Config{AllowedPaths: []string{"/exports", "/tmp/out", ""}}

	result := Merge(base, overlay)

	want := []string{"/data", "/exports", "/tmp/out"}
	if len(result.AllowedPaths) != len(want) {
		t.Fatalf("AllowedPaths = %v, want %v", result.AllowedPaths, want)
	}
	for i := range want {
		if result.AllowedPaths[i] != want[i] {
			t.Errorf("AllowedPaths[%d] = %q, want %q", i, result.AllowedPaths[i], want[i])
		}
	}
}

func TestFindRepoConfig_InParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfig(t, filepath.Join(tmpDir, DirName), `{}`)

	subdir := filepath.Join(tmpDir, "subdir", "deeper")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	if found := FindRepoConfig(subdir); found != configPath {
		t.Errorf("FindRepoConfig() = %q, want %q", found, configPath)
	}
	if found := FindRepoConfig(tmpDir); found != configPath {
		t.Errorf("FindRepoConfig() = %q, want %q", found, configPath)
	}
}

func TestFindRepoConfig_NotFound(t *testing.T) {
	if found := FindRepoConfig(t.TempDir()); found != "" {
		t.Errorf("FindRepoConfig() = %q, want empty string", found)
	}
}
