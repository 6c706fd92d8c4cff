package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ENV", "test")
	t.Setenv("DOTENV_DIR", dir)
	t.Setenv("TEST_SERVER_ADDRESS", ":9000")
	t.Setenv("TEST_PROGRESS_LEADERBOARDLIMIT", "5")

	dotEnv := "TEST_DOCUMENTSTORE=Redis\nTEST_REDIS_ADDRESS=cache:6379\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.test"), []byte(dotEnv), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("TEST_DOCUMENTSTORE")
		_ = os.Unsetenv("TEST_REDIS_ADDRESS")
	})

	conf := NewConfig()
	assert.Equal(t, "TEST", conf.Env)
	assert.True(t, conf.TestMode)
	assert.Equal(t, ":9000", conf.Server.Address)
	assert.Equal(t, 5, conf.Progress.LeaderboardLimit)
	assert.Equal(t, StoreRedis, conf.DocumentStore)
	assert.Equal(t, "cache:6379", conf.Redis.Address)
	assert.Equal(t, 100.0, conf.Progress.RepairScore)
	assert.Equal(t, 7*24*time.Hour, conf.Server.JWTExpirationDelta)
	assert.Equal(t, "noreply@localhost", conf.DefaultFromEmail().Address)
}

func TestConfig_Location(t *testing.T) {
	tests := []struct {
		tz   string
		want string
	}{
		{tz: "", want: time.Local.String()},
		{tz: "Local", want: time.Local.String()},
		{tz: "UTC", want: "UTC"},
		{tz: "Not/AZone", want: time.Local.String()},
	}
	for _, tc := range tests {
		t.Run(tc.tz, func(t *testing.T) {
			conf := NewTestConfig()
			conf.Progress.Timezone = tc.tz
			assert.Equal(t, tc.want, conf.Location().String())
		})
	}
}

func TestConfig_DefaultFromEmail(t *testing.T) {
	conf := NewTestConfig()
	assert.Equal(t, "IlmLab", conf.DefaultFromEmail().Name)

	conf.defaultFromEmail = "not an address"
	addr := conf.DefaultFromEmail()
	assert.Equal(t, "noreply@localhost", addr.Address)
	assert.Equal(t, conf.AppName, addr.Name)
}
