package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_YAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.test.yaml")
	yml := `
server:
  port: 9000
  request_timeout: 3s
database:
  driver: mysql
  host: db.internal
  port: 3306
  user: app
  password: pw
  dbname: studyshare
jwt:
  secret: from-file
notifications:
  producer_api_keys: ["k1"]
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("SERVER_PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, []string{"k1"}, cfg.Notifications.ProducerAPIKeys)
	assert.Equal(t, "app:pw@tcp(db.internal:3306)/studyshare?charset=utf8mb4&parseTime=True&loc=UTC", cfg.Database.GetDSN())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 8082, cfg.Server.Port)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "oracle")

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitAndTrim(" a, ,b ,", ","))
	assert.Empty(t, SplitAndTrim("", ","))
}
