package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	MailDriverRabbitMQ = "rabbitmq"
	MailDriverSMTP     = "smtp"
)

type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"local"`
	Storage    string `yaml:"storage" env:"STORAGE" env-default:"postgres"`
	Tokens     `yaml:"tokens"`
	Hash       `yaml:"hash"`
	HTTPServer `yaml:"http_server"`
	Postgres   `yaml:"postgres"`
	Redis      `yaml:"redis"`
	RabbitMQ   `yaml:"rabbitmq"`
	SMTP       `yaml:"smtp"`
	Mail       `yaml:"mail"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"postgres"`
	Port     int    `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB"`
	SSLMode  string `yaml:"sslmode" env-default:"disable"`
	MaxConns int32  `yaml:"max_conns" env-default:"10"`
	MinConns int32  `yaml:"min_conns" env-default:"2"`
}

type Redis struct {
	Addr           string        `yaml:"addr" env:"REDIS_ADDR"`
	Password       string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB             int           `yaml:"db" env-default:"0"`
	ResendCooldown time.Duration `yaml:"resend_cooldown" env-default:"60s"`
}

type Tokens struct {
	Secret               string        `yaml:"secret" env:"TOKEN_SECRET" env-required:"true"`
	AccessTokenTTL       time.Duration `yaml:"access_token_ttl" env-default:"2h"`
	RefreshTokenTTL      time.Duration `yaml:"refresh_token_ttl" env-default:"168h"`
	VerificationTokenTTL time.Duration `yaml:"verification_token_ttl" env-default:"24h"`
	ResetTokenTTL        time.Duration `yaml:"reset_token_ttl" env-default:"24h"`
	CleanupInterval      time.Duration `yaml:"cleanup_interval" env-default:"1h"`
}

type Hash struct {
	Cost          int `yaml:"cost" env-default:"10"`
	MaxConcurrent int `yaml:"max_concurrent" env-default:"0"`
}

type RabbitMQ struct {
	URL       string `yaml:"url" env:"RABBITMQ_URL"`
	QueueName string `yaml:"queue_name" env-default:"emails"`
}

type SMTP struct {
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     int    `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	Username string `yaml:"username" env:"SMTP_USERNAME"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
	From     string `yaml:"from" env:"SMTP_FROM"`
}

type Mail struct {
	Driver           string `yaml:"driver" env:"MAIL_DRIVER" env-default:"rabbitmq"`
	VerificationURL  string `yaml:"verification_url" env-default:"http://localhost:8080/auth/verify-email"`
	ResetPasswordURL string `yaml:"reset_password_url" env-default:"http://localhost:3000/reset-password"`
}

// MustLoad reads the config file named by the -config flag or CONFIG_PATH,
// falling back to ./config/config.yaml, and panics on any error.
func MustLoad() *Config {
	return MustLoadPath(fetchConfigPath())
}

func MustLoadPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("failed to read config: " + err.Error())
	}

	return &cfg
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}
	if res == "" {
		res = "./config/config.yaml"
	}

	return res
}
