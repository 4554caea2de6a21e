package config

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Public  Public
	Private Private
}

type Public struct {
	HttpAddr           string        `yaml:"http_addr"`
	JwtTTL             time.Duration `yaml:"jwt_ttl"`
	LogLevel           string        `yaml:"log_level"`
	LogJSON            bool          `yaml:"log_json"`
	AllowedOrigins     []string      `yaml:"allowed_origins"`
	HTTPS              bool          `yaml:"https"` // served behind TLS, enables HSTS
	AllowedEmailSuffix string        `yaml:"allowed_email_suffix"`
	MinPasswordLength  int           `yaml:"min_password_length"`
	OTPTTL             time.Duration `yaml:"otp_ttl"`
	ResetTokenTTL      time.Duration `yaml:"reset_token_ttl"`
	ResetURLBase       string        `yaml:"reset_url_base"` // empty: derived from the incoming request

	Storage Storage `yaml:"storage"`
	Pending Pending `yaml:"pending"`
	Mail    Mail    `yaml:"mail"`
}

type Storage struct {
	Driver string `yaml:"driver"` // "mongo" or "postgres"
}

type Pending struct {
	Driver         string        `yaml:"driver"` // "memory" or "redis"
	RetentionGrace time.Duration `yaml:"retention_grace"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
}

type Mail struct {
	Driver     string `yaml:"driver"` // "smtp", "queue" or "log"
	SenderName string `yaml:"sender_name"`
	Queue      string `yaml:"queue"`
}

type Private struct {
	JwtKey    string `yaml:"jwt_key"`
	SentryDSN string `yaml:"sentry_dsn"`
	AmqpURL   string `yaml:"amqp_url"`
	Pg        Pg     `yaml:"pg"`
	Mongo     Mongo  `yaml:"mongo"`
	Redis     Redis  `yaml:"redis"`
	Email     Email  `yaml:"email"`
}

type Pg struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Dbname   string `yaml:"dbname"`
}

type Mongo struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Email struct {
	SMTPServer string `yaml:"smtp_server"`
	SMTPPort   int    `yaml:"smtp_port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Timeout    int    `yaml:"timeout"` // seconds
}

func (s *Config) JwtKey() string {
	return s.Private.JwtKey
}

func (s *Config) JwtTTL() time.Duration {
	return s.Public.JwtTTL
}

func (p *Public) setDefaults() {
	if p.HttpAddr == "" {
		p.HttpAddr = ":5000"
	}
	if p.JwtTTL == 0 {
		p.JwtTTL = 30 * 24 * time.Hour
	}
	if p.MinPasswordLength == 0 {
		p.MinPasswordLength = 8
	}
	if p.OTPTTL == 0 {
		p.OTPTTL = 10 * time.Minute
	}
	if p.ResetTokenTTL == 0 {
		p.ResetTokenTTL = 10 * time.Minute
	}
	if p.Storage.Driver == "" {
		p.Storage.Driver = "mongo"
	}
	if p.Pending.Driver == "" {
		p.Pending.Driver = "memory"
	}
	if p.Pending.RetentionGrace == 0 {
		p.Pending.RetentionGrace = 30 * time.Minute
	}
	if p.Pending.SweepInterval == 0 {
		p.Pending.SweepInterval = time.Minute
	}
	if p.Mail.Driver == "" {
		p.Mail.Driver = "smtp"
	}
	if p.Mail.SenderName == "" {
		p.Mail.SenderName = "VP Portal"
	}
	if p.Mail.Queue == "" {
		p.Mail.Queue = "vpportal.mail"
	}
}

func (p *Public) validate() error {
	if p.AllowedEmailSuffix == "" {
		return fmt.Errorf("allowed_email_suffix is required")
	}
	switch p.Storage.Driver {
	case "mongo", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q", p.Storage.Driver)
	}
	switch p.Pending.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown pending driver %q", p.Pending.Driver)
	}
	switch p.Mail.Driver {
	case "smtp", "queue", "log":
	default:
		return fmt.Errorf("unknown mail driver %q", p.Mail.Driver)
	}
	return nil
}

// applyEnv lets deployments keep secrets out of private.yaml.
func (p *Private) applyEnv() {
	setString := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString(&p.JwtKey, "JWT_SECRET")
	setString(&p.SentryDSN, "SENTRY_DSN")
	setString(&p.AmqpURL, "AMQP_URL")
	setString(&p.Mongo.URI, "MONGO_URI")
	setString(&p.Mongo.Database, "MONGO_DB")
	setString(&p.Pg.Host, "PG_HOST")
	setString(&p.Pg.User, "PG_USER")
	setString(&p.Pg.Password, "PG_PASSWORD")
	setString(&p.Pg.Dbname, "PG_DBNAME")
	setString(&p.Redis.Addr, "REDIS_ADDR")
	setString(&p.Redis.Password, "REDIS_PASSWORD")
	setString(&p.Email.Username, "SMTP_USER")
	setString(&p.Email.Password, "SMTP_PASS")
	setString(&p.Email.SMTPServer, "SMTP_HOST")
	if v, ok := os.LookupEnv("SMTP_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			p.Email.SMTPPort = port
		}
	}
	if v, ok := os.LookupEnv("PG_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			p.Pg.Port = port
		}
	}
}

func mustLoadPath(configPath string, output interface{}) {
	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		panic("can't read config file")
	}

	if err = yaml.UnmarshalStrict(configFile, output); err != nil {
		panic("can't unmarshal config file: " + err.Error())
	}
}

// MustLoad reads public.yaml and private.yaml from configFolder. private.yaml
// is optional when every secret comes from the environment.
func MustLoad(configFolder string) *Config {
	var public Public
	mustLoadPath(path.Join(configFolder, "public.yaml"), &public)
	public.setDefaults()
	if err := public.validate(); err != nil {
		panic("invalid public config: " + err.Error())
	}

	var private Private
	privatePath := path.Join(configFolder, "private.yaml")
	if _, err := os.Stat(privatePath); err == nil {
		mustLoadPath(privatePath, &private)
	}
	private.applyEnv()
	if private.JwtKey == "" {
		panic("jwt_key is not configured")
	}

	return &Config{Public: public, Private: private}
}
