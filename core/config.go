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

type (
	ServerConfig struct {
		Host                      string
		Addr                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
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

	StorageConfig struct {
		Dir     string
		BaseURL string
	}

	TrainingConfig struct {
		PassPercentage       int
		RetakeCooldown       time.Duration
		ReminderSchedule     string // cron spec
		ReminderWindow       time.Duration
		CertificateIssuer    string
		CertificateProgramme string
	}

	Config struct {
		AppName                   string
		Env                       string
		Build                     string
		Debug                     bool
		TestMode                  bool
		SecretKey                 string
		FrontendBaseURL           string
		PasswordResetTimeoutDelta time.Duration
		RollbarToken              string
		SendgridApiKey            string
		RedisURL                  string

		Server   ServerConfig
		Database DatabaseConfig
		Storage  StorageConfig
		Training TrainingConfig

		defaultFromEmail string
	}
)

// DefaultFromEmail parses the configured sender. A sender without a name is sent as AppName.
func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

func (d DatabaseConfig) Address() string {
	return net.JoinHostPort(d.Host, d.Port)
}

// NewConfig loads the configuration from defaults, the optional `config/.env.<env>` file and
// `<ENV>_`-prefixed environment variables, in increasing order of precedence.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Cadence Academy")
	v.SetDefault("secretKey", "lq7+3o)z*tc$0y@8hd=a#c1v!kbn2w^e5&rmf(4spj6gxu9i")
	v.SetDefault("defaultFromEmail", "Cadence Academy <noreply@localhost>")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("redisURL", "")

	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddr", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbName", "cadence")
	v.SetDefault("dbUser", "cadence")
	v.SetDefault("dbPassword", "cadence")
	v.SetDefault("dbAdminUser", "postgres")
	v.SetDefault("dbAdminPassword", "postgres")
	v.SetDefault("dbDisableTLS", true)

	v.SetDefault("storageDir", filepath.Join(os.TempDir(), "cadence", "media"))
	v.SetDefault("storageBaseURL", "http://localhost:8000/media")

	v.SetDefault("passPercentage", 80)
	v.SetDefault("retakeCooldown", 24*time.Hour)
	v.SetDefault("reminderSchedule", "0 * * * *")
	v.SetDefault("reminderWindow", 24*time.Hour)
	v.SetDefault("certificateIssuer", "Cadence Academy")
	v.SetDefault("certificateProgramme", "Certified Music Protocol Facilitator")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:                   v.GetString("appName"),
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		RollbarToken:              v.GetString("rollbarToken"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		RedisURL:                  v.GetString("redisURL"),
		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			Addr:                      v.GetString("serverAddr"),
			DebugHost:                 v.GetString("serverDebugHost"),
			ShutdownTimeout:           v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Storage: StorageConfig{
			Dir:     v.GetString("storageDir"),
			BaseURL: strings.TrimRight(v.GetString("storageBaseURL"), "/"),
		},
		Training: TrainingConfig{
			PassPercentage:       v.GetInt("passPercentage"),
			RetakeCooldown:       v.GetDuration("retakeCooldown"),
			ReminderSchedule:     v.GetString("reminderSchedule"),
			ReminderWindow:       v.GetDuration("reminderWindow"),
			CertificateIssuer:    v.GetString("certificateIssuer"),
			CertificateProgramme: v.GetString("certificateProgramme"),
		},
		defaultFromEmail: v.GetString("defaultFromEmail"),
	}
}

// NewTestConfig returns the configuration used by package tests.
func NewTestConfig() *Config {
	conf := NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.SecretKey = "secret"
	conf.Server.JWTExpirationDelta = 10 * time.Minute
	conf.Storage.Dir = filepath.Join(os.TempDir(), fmt.Sprintf("cadence-test-%d", os.Getpid()))
	return conf
}
