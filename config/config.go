package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Reports ReportsConfig `yaml:"reports"`
	Sheets  SheetsConfig  `yaml:"sheets"`
	Redis   RedisConfig   `yaml:"redis"`
	Kafka   KafkaConfig   `yaml:"kafka"`
}

type ServerConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	SwaggerPath        string `yaml:"swagger_path"`
	PublicBaseURL      string `yaml:"public_base_url"`
	Timezone           string `yaml:"timezone"`
	LogLevel           string `yaml:"log_level"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	// TrustProxyHeaders takes the client IP from X-Forwarded-For / X-Real-IP.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
	// WorkerHTTPAddr is the health endpoint of the link issuer.
	WorkerHTTPAddr string `yaml:"worker_http_addr"`
}

type ReportsConfig struct {
	// SecretSalt is usually left empty here and supplied through SECRET_SALT.
	SecretSalt           string `yaml:"secret_salt"`
	MasterSheetName      string `yaml:"master_sheet_name"`
	Schema               string `yaml:"schema"` // "cash" | "legacy"
	DefaultTransit       *int64 `yaml:"default_transit"`
	DefaultEmpty         *int64 `yaml:"default_empty"`
	TabRows              int    `yaml:"tab_rows"`
	TabCols              int    `yaml:"tab_cols"`
	SubmissionTTLSeconds int    `yaml:"submission_ttl_seconds"`
}

type SheetsConfig struct {
	Backend            string `yaml:"backend"` // "google" | "xlsx" | "fake"
	CredentialsFile    string `yaml:"credentials_file"`
	FolderID           string `yaml:"folder_id"`
	XLSXDir            string `yaml:"xlsx_dir"`
	HTTPTimeoutSeconds int    `yaml:"http_timeout_seconds"`
	// CreateMaster provisions the master spreadsheet on start (xlsx and fake only).
	CreateMaster bool `yaml:"create_master"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type KafkaConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	ReportedTopic   string `yaml:"reported_topic"`
	DispatchedTopic string `yaml:"dispatched_topic"`
	LinkIssuedTopic string `yaml:"link_issued_topic"`
	ConsumerGroup   string `yaml:"consumer_group"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	config.applyEnv()
	return &config, nil
}

// applyEnv lets secrets come from the environment instead of the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("SECRET_SALT"); v != "" {
		c.Reports.SecretSalt = v
	}
	if v := os.Getenv("FOLDER_ID"); v != "" {
		c.Sheets.FolderID = v
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" && c.Sheets.CredentialsFile == "" {
		c.Sheets.CredentialsFile = v
	}
}

func (c *Config) RedisAddr() string {
	if c.Redis.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func (c *Config) KafkaBrokers() []string {
	if c.Kafka.Host == "" {
		return nil
	}
	return []string{fmt.Sprintf("%s:%d", c.Kafka.Host, c.Kafka.Port)}
}

// CredentialsJSON returns the service account key, preferring the
// GOOGLE_CREDENTIALS_JSON env var over the configured file.
func (c *Config) CredentialsJSON() ([]byte, error) {
	if v := os.Getenv("GOOGLE_CREDENTIALS_JSON"); v != "" {
		return []byte(v), nil
	}
	if c.Sheets.CredentialsFile == "" {
		return nil, fmt.Errorf("sheets.credentials_file is not set")
	}
	b, err := os.ReadFile(c.Sheets.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	return b, nil
}
