package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Document store backends
const (
	StoreSQL    = "sql"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type (
	ServerConfig struct {
		Host               string
		Address            string
		DebugAddress       string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | sqlite
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		Path          string // sqlite only
	}

	RedisConfig struct {
		Address  string
		Password string
		DB       int
	}

	ProgressConfig struct {
		UsersCollection  string
		RepairScore      float64
		Timezone         string
		LeaderboardLimit int
		CatalogPath      string
	}

	AssessmentConfig struct {
		GeminiAPIKey string
		Model        string
	}

	Config struct {
		Env             string
		Build           string
		AppName         string
		Debug           bool
		TestMode        bool
		SecretKey       string
		RollbarToken    string
		SendgridApiKey  string
		FrontendBaseURL string
		DocumentStore   string

		Server     ServerConfig
		Database   DatabaseConfig
		Redis      RedisConfig
		Progress   ProgressConfig
		Assessment AssessmentConfig

		defaultFromEmail string
	}
)

// NewConfig reads the configuration of the current ENV (DEV by default) from the environment,
// after loading `config/.env.<env>` if it exists.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "IlmLab")
	v.SetDefault("secretKey", "b7s#k2!mzq-0w9x$e1r4t@y6u8i(o)p3a5s7d9f2g4h")
	v.SetDefault("defaultFromEmail", "IlmLab <noreply@localhost>")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("documentStore", StoreSQL)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugAddress", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)

	v.SetDefault("database.engine", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "ilmlab")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.path", filepath.Join("data", "ilmlab.db"))

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("progress.usersCollection", "users")
	v.SetDefault("progress.repairScore", 100.0)
	v.SetDefault("progress.timezone", "Local")
	v.SetDefault("progress.leaderboardLimit", 20)
	v.SetDefault("progress.catalogPath", "")

	v.SetDefault("assessment.geminiAPIKey", "")
	v.SetDefault("assessment.model", "gemini-1.5-flash")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if dir := os.Getenv("DOTENV_DIR"); dir != "" {
		dotEnvPath = filepath.Join(dir, ".env."+strings.ToLower(env))
	}
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:              env,
		Build:            v.GetString("build"),
		AppName:          v.GetString("appName"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		DocumentStore:    strings.ToLower(v.GetString("documentStore")),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:               v.GetString("server.host"),
			Address:            v.GetString("server.address"),
			DebugAddress:       v.GetString("server.debugAddress"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        strings.ToLower(v.GetString("database.engine")),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			Path:          v.GetString("database.path"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Progress: ProgressConfig{
			UsersCollection:  v.GetString("progress.usersCollection"),
			RepairScore:      v.GetFloat64("progress.repairScore"),
			Timezone:         v.GetString("progress.timezone"),
			LeaderboardLimit: v.GetInt("progress.leaderboardLimit"),
			CatalogPath:      v.GetString("progress.catalogPath"),
		},
		Assessment: AssessmentConfig{
			GeminiAPIKey: v.GetString("assessment.geminiAPIKey"),
			Model:        v.GetString("assessment.model"),
		},
	}
}

// NewTestConfig returns the defaults used by tests, without reading the environment.
func NewTestConfig() *Config {
	return &Config{
		Env:              "TEST",
		Build:            "test",
		AppName:          "IlmLab",
		TestMode:         true,
		SecretKey:        "secret",
		FrontendBaseURL:  "http://localhost:3000",
		DocumentStore:    StoreMemory,
		defaultFromEmail: "IlmLab <noreply@localhost>",
		Server: ServerConfig{
			Host:               "localhost",
			ShutdownTimeout:    time.Second,
			JWTExpirationDelta: 10 * time.Minute,
		},
		Database: DatabaseConfig{Engine: "sqlite", Path: ":memory:"},
		Progress: ProgressConfig{
			UsersCollection:  "users",
			RepairScore:      100,
			Timezone:         "UTC",
			LeaderboardLimit: 20,
		},
	}
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@" + c.Server.Host}
	}
	return *addr
}

// Location is the time zone calendar days (login streaks) are computed in.
func (c *Config) Location() *time.Location {
	switch c.Progress.Timezone {
	case "", "Local":
		return time.Local
	case "UTC":
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Progress.Timezone)
	if err != nil {
		log.Printf("config: unknown timezone %q, falling back to Local: %v", c.Progress.Timezone, err)
		return time.Local
	}
	return loc
}

func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, dc.Port)
}

func (rc RedisConfig) String() string {
	return fmt.Sprintf("redis://%s/%d", rc.Address, rc.DB)
}
