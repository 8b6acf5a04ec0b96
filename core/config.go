package core

import (
	"log"
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
		Host            string
		DebugHost       string
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
	}

	BackendConfig struct {
		BaseURL string
		Timeout time.Duration
	}

	// StoreConfig selects the key/value store backing tokens, profiles and drafts.
	// Engine is one of: memory, sqlite3, postgres, redis.
	StoreConfig struct {
		Engine        string
		DSN           string
		Namespace     string
		RedisAddr     string
		RedisPassword string
		RedisDB       int
	}

	EventsConfig struct {
		AMQPURL    string
		Exchange   string
		RoutingKey string
	}

	ObjectsConfig struct {
		Endpoint        string
		AccessKeyID     string
		SecretAccessKey string
		Bucket          string
		Region          string
		UseSSL          bool
		PublicBaseURL   string
	}

	QuizConfig struct {
		TimeLimit   time.Duration
		IdleTimeout time.Duration // API sessions untouched for longer are dropped
	}

	PaymentConfig struct {
		PollInterval time.Duration
		NotifySecret string // shared with the payment provider; notifications are refused while empty
	}

	Config struct {
		AppName          string
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		RollbarToken     string
		SendgridApiKey   string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address

		Server  ServerConfig
		Backend BackendConfig
		Store   StoreConfig
		Events  EventsConfig
		Objects ObjectsConfig
		Quiz    QuizConfig
		Payment PaymentConfig
	}
)

// NewConfig reads the configuration from the environment (prefixed by $ENV) on top of defaults.
// A `config/.env.<env>` file is loaded first when it exists.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "Elimu")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("secretKey", "x8$k2m#q!vt7w=0e^u3)s9r(zb5p@j1y&n6+c4d*g_hf-l")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("serverHost", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("serverDisableReqLogs", false)
	v.SetDefault("backendBaseURL", "http://localhost:5000")
	v.SetDefault("backendTimeout", 15*time.Second)
	v.SetDefault("storeEngine", "memory")
	v.SetDefault("storeDSN", "")
	v.SetDefault("storeNamespace", "elimu")
	v.SetDefault("storeRedisAddr", "localhost:6379")
	v.SetDefault("storeRedisPassword", "")
	v.SetDefault("storeRedisDB", 0)
	v.SetDefault("eventsAMQPURL", "")
	v.SetDefault("eventsExchange", "payment.events")
	v.SetDefault("eventsRoutingKey", "payment.status")
	v.SetDefault("objectsEndpoint", "")
	v.SetDefault("objectsAccessKeyID", "")
	v.SetDefault("objectsSecretAccessKey", "")
	v.SetDefault("objectsBucket", "course-images")
	v.SetDefault("objectsRegion", "us-east-1")
	v.SetDefault("objectsUseSSL", false)
	v.SetDefault("objectsPublicBaseURL", "")
	v.SetDefault("quizTimeLimit", 1200*time.Second)
	v.SetDefault("quizIdleTimeout", time.Hour)
	v.SetDefault("paymentPollInterval", 500*time.Millisecond)
	v.SetDefault("paymentNotifySecret", "")

	env := strings.ToUpper(os.Getenv("ENV"))
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

	conf := &Config{
		AppName:         v.GetString("appName"),
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		SecretKey:       v.GetString("secretKey"),
		RollbarToken:    v.GetString("rollbarToken"),
		SendgridApiKey:  v.GetString("sendgridApiKey"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		Server: ServerConfig{
			Host:            v.GetString("serverHost"),
			DebugHost:       v.GetString("serverDebugHost"),
			ShutdownTimeout: v.GetDuration("serverShutdownTimeout"),
			DisableReqLogs:  v.GetBool("serverDisableReqLogs"),
		},
		Backend: BackendConfig{
			BaseURL: strings.TrimRight(v.GetString("backendBaseURL"), "/"),
			Timeout: v.GetDuration("backendTimeout"),
		},
		Store: StoreConfig{
			Engine:        strings.ToLower(v.GetString("storeEngine")),
			DSN:           v.GetString("storeDSN"),
			Namespace:     v.GetString("storeNamespace"),
			RedisAddr:     v.GetString("storeRedisAddr"),
			RedisPassword: v.GetString("storeRedisPassword"),
			RedisDB:       v.GetInt("storeRedisDB"),
		},
		Events: EventsConfig{
			AMQPURL:    v.GetString("eventsAMQPURL"),
			Exchange:   v.GetString("eventsExchange"),
			RoutingKey: v.GetString("eventsRoutingKey"),
		},
		Objects: ObjectsConfig{
			Endpoint:        v.GetString("objectsEndpoint"),
			AccessKeyID:     v.GetString("objectsAccessKeyID"),
			SecretAccessKey: v.GetString("objectsSecretAccessKey"),
			Bucket:          v.GetString("objectsBucket"),
			Region:          v.GetString("objectsRegion"),
			UseSSL:          v.GetBool("objectsUseSSL"),
			PublicBaseURL:   v.GetString("objectsPublicBaseURL"),
		},
		Quiz: QuizConfig{
			TimeLimit:   v.GetDuration("quizTimeLimit"),
			IdleTimeout: v.GetDuration("quizIdleTimeout"),
		},
		Payment: PaymentConfig{
			PollInterval: v.GetDuration("paymentPollInterval"),
			NotifySecret: v.GetString("paymentNotifySecret"),
		},
	}

	from, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}
	conf.DefaultFromEmail = *from

	return conf
}

// NewTestConfig returns the configuration used by package tests: no .env, no external services.
func NewTestConfig() *Config {
	return &Config{
		AppName:          "Elimu",
		Env:              "TEST",
		Build:            "test",
		Debug:            false,
		TestMode:         true,
		SecretKey:        "test-secret-key",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Elimu", Address: "noreply@localhost"},
		Server:           ServerConfig{Host: ":0", ShutdownTimeout: time.Second, DisableReqLogs: true},
		Backend:          BackendConfig{BaseURL: "http://localhost:5000", Timeout: 5 * time.Second},
		Store:            StoreConfig{Engine: "memory", Namespace: "test"},
		Events:           EventsConfig{Exchange: "payment.events", RoutingKey: "payment.status"},
		Objects:          ObjectsConfig{Bucket: "course-images"},
		Quiz:             QuizConfig{TimeLimit: 1200 * time.Second, IdleTimeout: time.Hour},
		Payment:          PaymentConfig{PollInterval: 500 * time.Millisecond, NotifySecret: "test-notify-secret"},
	}
}
