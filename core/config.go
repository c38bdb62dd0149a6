package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// session backends
const (
	SessionBackendMemory   = "memory"
	SessionBackendPostgres = "postgres"
	SessionBackendSQLite   = "sqlite"
	SessionBackendRedis    = "redis"
)

type (
	Config struct {
		Debug        bool
		TestMode     bool
		AppName      string
		Build        string
		Env          string
		SecretKey    string
		RollbarToken string
		Server       ServerConfig
		CMS          CMSConfig
		Session      SessionConfig
	}

	ServerConfig struct {
		Address         string
		Host            string
		DebugHost       string
		ShutdownTimeout time.Duration
		CSRFKey         string
		SecureCookies   bool
		LoginPath       string
	}

	CMSConfig struct {
		BaseURL string
	}

	SessionConfig struct {
		Backend       string
		DSN           string
		RedisAddr     string
		RedisPassword string
		RedisDB       int
	}
)

// NewConfig reads the configuration from defaults, `config/.env.<env>` and the environment (prefixed with <ENV>_).
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Mother Care")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "mz7q-4ur)kxb$+91=dp&ewt2(k!z)#*c8(#rg4h^$cegm2ehs")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.csrfKey", "")
	v.SetDefault("server.secureCookies", false)
	v.SetDefault("server.loginPath", "/login")
	v.SetDefault("cms.baseURL", "http://localhost:1337")
	v.SetDefault("session.backend", SessionBackendMemory)
	v.SetDefault("session.dsn", "")
	v.SetDefault("session.redisAddr", "localhost:6379")
	v.SetDefault("session.redisPassword", "")
	v.SetDefault("session.redisDB", 0)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	if root, ok := ProjectRoot(); ok {
		dotEnvPath := filepath.Join(root, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
		}
	}
	v.AutomaticEnv()

	return &Config{
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		AppName:      v.GetString("appName"),
		Build:        v.GetString("build"),
		Env:          env,
		SecretKey:    v.GetString("secretKey"),
		RollbarToken: v.GetString("rollbarToken"),
		Server: ServerConfig{
			Address:         v.GetString("server.address"),
			Host:            v.GetString("server.host"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			CSRFKey:         v.GetString("server.csrfKey"),
			SecureCookies:   v.GetBool("server.secureCookies"),
			LoginPath:       v.GetString("server.loginPath"),
		},
		CMS: CMSConfig{
			BaseURL: strings.TrimRight(v.GetString("cms.baseURL"), "/"),
		},
		Session: SessionConfig{
			Backend:       strings.ToLower(v.GetString("session.backend")),
			DSN:           v.GetString("session.dsn"),
			RedisAddr:     v.GetString("session.redisAddr"),
			RedisPassword: v.GetString("session.redisPassword"),
			RedisDB:       v.GetInt("session.redisDB"),
		},
	}
}
