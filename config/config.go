package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Password  PasswordConfig  `mapstructure:"password"`
	Team      TeamConfig      `mapstructure:"team"`
	Lock      LockConfig      `mapstructure:"lock"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type PostgresConfig struct {
	Host          string        `mapstructure:"host"`
	Port          string        `mapstructure:"port"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	DBName        string        `mapstructure:"dbname"`
	MaxIdleConns  int           `mapstructure:"max_idle_conns"`
	MaxOpenConns  int           `mapstructure:"max_open_conns"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
}

type RedisConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret   string `mapstructure:"secret"`
	TTLHours int    `mapstructure:"ttl_hours"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RegisterPerMinute int  `mapstructure:"register_per_minute"`
	LoginPerMinute    int  `mapstructure:"login_per_minute"`
	APIPerMinute      int  `mapstructure:"api_per_minute"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// PasswordConfig controls how account passwords are hashed.
// Algorithm is "md5" (salted, compatible with existing rows) or "bcrypt".
type PasswordConfig struct {
	Salt      string `mapstructure:"salt"`
	Algorithm string `mapstructure:"algorithm"`
}

type TeamConfig struct {
	MaxOwned   int `mapstructure:"max_owned"`
	MaxJoined  int `mapstructure:"max_joined"`
	MinMembers int `mapstructure:"min_members"`
	MaxMembers int `mapstructure:"max_members"`
}

// LockConfig tunes the redis lock: TTL bounds how long a crashed holder
// blocks others, Wait bounds how long a caller retries before giving up.
type LockConfig struct {
	TTL  time.Duration `mapstructure:"ttl"`
	Wait time.Duration `mapstructure:"wait"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("postgres.host", "127.0.0.1")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "teammatch")
	v.SetDefault("postgres.max_idle_conns", 10)
	v.SetDefault("postgres.max_open_conns", 50)
	v.SetDefault("postgres.slow_threshold", 200*time.Millisecond)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl_hours", 72)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file_path", "")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.register_per_minute", 10)
	v.SetDefault("ratelimit.login_per_minute", 20)
	v.SetDefault("ratelimit.api_per_minute", 300)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "team-events")

	v.SetDefault("password.salt", "symm")
	v.SetDefault("password.algorithm", "md5")

	v.SetDefault("team.max_owned", 5)
	v.SetDefault("team.max_joined", 5)
	v.SetDefault("team.min_members", 2)
	v.SetDefault("team.max_members", 20)

	v.SetDefault("lock.ttl", 10*time.Second)
	v.SetDefault("lock.wait", 3*time.Second)
}

// LoadConfig reads the TOML file at path and applies TEAMMATCH_* environment overrides.
// A missing file is not an error: defaults and environment still apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TEAMMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects configurations the services cannot run with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret must be set")
	}
	if c.JWT.TTLHours <= 0 {
		return fmt.Errorf("jwt.ttl_hours must be positive, got %d", c.JWT.TTLHours)
	}
	switch c.Password.Algorithm {
	case "md5", "bcrypt":
	default:
		return fmt.Errorf("password.algorithm must be md5 or bcrypt, got %q", c.Password.Algorithm)
	}
	if c.Team.MinMembers < 1 || c.Team.MaxMembers < c.Team.MinMembers {
		return fmt.Errorf("team member bounds are invalid: [%d, %d]", c.Team.MinMembers, c.Team.MaxMembers)
	}
	if c.Team.MaxOwned <= 0 || c.Team.MaxJoined <= 0 {
		return fmt.Errorf("team.max_owned and team.max_joined must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must be set when kafka is enabled")
	}
	return nil
}

// PostgresDSN builds the connection string for the gorm postgres driver.
func (c *PostgresConfig) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", c.Host, c.Port, c.User, c.Password, c.DBName)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}
