package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*ConfigManager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	m, err := NewConfigManagerAt(path)
	require.NoError(t, err)
	return m, path
}

func TestSetAndGetValue(t *testing.T) {
	m, path := newTestManager(t)

	require.NoError(t, m.SetValue("gcs.project", "my-project-123"))

	value, ok := m.GetValue("gcs.project")
	assert.True(t, ok)
	assert.Equal(t, "my-project-123", value)

	_, ok = m.GetValue("gcs.bucket")
	assert.False(t, ok)

	// The write landed on disk: a fresh manager sees it.
	reread, err := NewConfigManagerAt(path)
	require.NoError(t, err)
	value, ok = reread.GetValue("gcs.project")
	assert.True(t, ok)
	assert.Equal(t, "my-project-123", value)
}

func TestSetValueNormalizesCase(t *testing.T) {
	m, _ := newTestManager(t)

	require.NoError(t, m.SetValue("GCS.Project", "p"))
	value, ok := m.GetValue("gcs.project")
	assert.True(t, ok)
	assert.Equal(t, "p", value)
}

func TestSetValueRejectsUnknownKey(t *testing.T) {
	m, path := newTestManager(t)

	err := m.SetValue("gcs.projcet", "typo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key: gcs.projcet")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "a rejected key must not create the file")
}

func TestSetValueRejectsInvalidValue(t *testing.T) {
	m, _ := newTestManager(t)

	err := m.SetValue("default_provider", "azure")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oneof")

	_, ok := m.GetValue("default_provider")
	assert.False(t, ok, "a rejected value must not reach the in-memory view")
}

func TestCredentialKeysSettableOneAtATime(t *testing.T) {
	m, _ := newTestManager(t)

	// Key pairing is enforced when the provider is used, not here, so a
	// pair can be entered across two invocations in either order.
	require.NoError(t, m.SetValue("s3.access_key_id", "AKIA123"))
	require.NoError(t, m.SetValue("s3.secret_access_key", "shhh"))

	cfg, err := m.LoadConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg.S3)
	assert.Equal(t, "AKIA123", cfg.S3.AccessKeyID)
	assert.Equal(t, "shhh", cfg.S3.SecretAccessKey)
}

func TestDeleteValue(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.SetValue("gcs.project", "p"))
	require.NoError(t, m.SetValue("app_id", "cumulus-dev"))

	deleted, err := m.DeleteValue("gcs.project")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, ok := m.GetValue("gcs.project")
	assert.False(t, ok)

	// Deleting the only key of a block prunes the empty block.
	settings := m.GetAllSettings()
	_, hasBlock := settings["gcs"]
	assert.False(t, hasBlock)

	deleted, err = m.DeleteValue("gcs.project")
	require.NoError(t, err)
	assert.False(t, deleted, "deleting a missing key reports false")
}

func TestLoadConfig(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.SetValue("app_id", "cumulus-dev"))
	require.NoError(t, m.SetValue("default_provider", "local"))
	require.NoError(t, m.SetValue("local.path", "/var/lib/cumulus"))

	cfg, err := m.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "cumulus-dev", cfg.AppID)
	assert.Equal(t, "local", cfg.DefaultProvider)
	require.NotNil(t, cfg.Local)
	assert.Equal(t, "/var/lib/cumulus", cfg.Local.Path)
	assert.Nil(t, cfg.GCS, "an absent block stays nil")
	assert.Nil(t, cfg.S3)
}

func TestLoadConfigRejectsHandEditedInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("default_provider: azure\n"), 0644))

	m, err := NewConfigManagerAt(path)
	require.NoError(t, err)

	_, err = m.LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestMissingFileBehavesLikeEmptyConfig(t *testing.T) {
	m, _ := newTestManager(t)

	_, ok := m.GetValue("app_id")
	assert.False(t, ok)
	assert.Empty(t, m.GetAllSettings())

	cfg, err := m.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "", cfg.AppID)
}

func TestMigrateLegacyConfig(t *testing.T) {
	dir := t.TempDir()
	legacyPath := filepath.Join(dir, legacyConfigFileName)
	destPath := filepath.Join(dir, ConfigFileName)

	legacy := []byte(`{"app_id": "old-app", "gcs": {"project": "old-project"}}`)
	require.NoError(t, os.WriteFile(legacyPath, legacy, 0644))

	require.NoError(t, migrateLegacyConfig(legacyPath, destPath))

	m, err := NewConfigManagerAt(destPath)
	require.NoError(t, err)

	value, ok := m.GetValue("app_id")
	assert.True(t, ok)
	assert.Equal(t, "old-app", value)

	value, ok = m.GetValue("gcs.project")
	assert.True(t, ok)
	assert.Equal(t, "old-project", value)
}

func TestKnownKeysReturnsCopy(t *testing.T) {
	keys := KnownKeys()
	require.NotEmpty(t, keys)
	keys[0] = "mutated"
	assert.NotEqual(t, "mutated", KnownKeys()[0])
}
