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

// storage drivers
const (
	StoragePostgres = "postgres"
	StorageBolt     = "bolt"
	StorageMemory   = "memory"
)

type (
	Config struct {
		AppName          string
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		WorkDir          string
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail string
		RollbarToken     string
		SendgridApiKey   string

		Server   serverConfig
		Database databaseConfig
		Storage  storageConfig
		Redis    redisConfig
		Kafka    kafkaConfig
		Grading  gradingConfig
	}

	serverConfig struct {
		Host                      string
		Port                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	databaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	storageConfig struct {
		Driver   string // postgres | bolt | memory
		BoltPath string
	}

	redisConfig struct {
		Addr     string // empty disables the stats cache
		Password string
		DB       int
		StatsTTL time.Duration
	}

	kafkaConfig struct {
		Brokers []string // empty disables event publishing
		Topic   string
	}

	gradingConfig struct {
		// AllowRegrade lets a lecturer overwrite an existing grade.
		AllowRegrade bool
		// LockGradedSubmissions rejects resubmissions once a grade exists.
		LockGradedSubmissions bool
	}
)

func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}

func (c *Config) FromEmail() mail.Address {
	return mail.Address{Name: c.AppName, Address: c.DefaultFromEmail}
}

func (dbc databaseConfig) Address() string {
	return net.JoinHostPort(dbc.Host, dbc.Port)
}

// NewConfig reads the configuration from the environment (prefixed by ENV)
// and from an optional `config/.env.<env>` file.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v, env)

	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:          v.GetString("appName"),
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		WorkDir:          wd,
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		DefaultFromEmail: v.GetString("defaultFromEmail"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		Server: serverConfig{
			Host:                      v.GetString("server.host"),
			Port:                      v.GetString("server.port"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Database: databaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Storage: storageConfig{
			Driver:   strings.ToLower(v.GetString("storage.driver")),
			BoltPath: v.GetString("storage.boltPath"),
		},
		Redis: redisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			StatsTTL: v.GetDuration("redis.statsTTL"),
		},
		Kafka: kafkaConfig{
			Brokers: splitList(v.GetString("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
		},
		Grading: gradingConfig{
			AllowRegrade:          v.GetBool("grading.allowRegrade"),
			LockGradedSubmissions: v.GetBool("grading.lockGradedSubmissions"),
		},
	}
}

func setDefaults(v *viper.Viper, env string) {
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("appName", "Babcock VPL")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "l7s)0v-2k!b^vpl#c8w$q=3zz0a1r@_n5m^x(9t*2e&uy4+hd")
	v.SetDefault("frontendBaseURL", "http://localhost:5173")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.debugHost", "127.0.0.1:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 30*24*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "vpl")
	v.SetDefault("database.user", "vpl")
	v.SetDefault("database.password", "vpl")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", env == "DEV" || env == "TEST")

	v.SetDefault("storage.driver", StoragePostgres)
	v.SetDefault("storage.boltPath", filepath.Join("data", "vpl.db"))

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.statsTTL", 5*time.Minute)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "vpl.lab-events")

	// When enabled a regrade overwrites in place and sequential regrades leave only the last
	// grade (core/lab Test_service_GradeSubmission_regrade); concurrent ones keep whichever lands last.
	v.SetDefault("grading.allowRegrade", false)
	v.SetDefault("grading.lockGradedSubmissions", true)
}

func splitList(s string) []string {
	var list []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}

// Getwd tries to find the project root (the directory holding go.mod).
// go-test changes the working directory to the package being tested, so we walk up from there.
// Falls back to the current working directory when no go.mod is found (e.g. a deployed binary).
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(fmt.Errorf("core.Getwd: %v", err))
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
