package config

import (
	"fmt"
	"os"
	"path"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Public  Public
	Private Private
}

type Public struct {
	HttpPort            int           `yaml:"http_port" validate:"required,min=1,max=65535"`
	LogLevel            string        `yaml:"log_level"`
	LogJSON             bool          `yaml:"log_json"`
	JwtTTL              time.Duration `yaml:"jwt_ttl" validate:"required"`
	CorsOrigins         []string      `yaml:"cors_origins"`
	Https               bool          `yaml:"https"`
	ThreadedDiscussions bool          `yaml:"threaded_discussions"` // experimental_threaded_discussions_enabled, can be flipped at runtime by admins
	Bus                 Bus           `yaml:"bus"`
	TrashRetention      time.Duration `yaml:"trash_retention"` // 0 keeps trashed messages forever
	TrashGCInterval     time.Duration `yaml:"trash_gc_interval"`
}

type Bus struct {
	Driver         string        `yaml:"driver" validate:"required,oneof=memory postgres redis"`
	RedisAddr      string        `yaml:"redis_addr" validate:"required_if=Driver redis"`
	RedisDB        int           `yaml:"redis_db"`
	PublishTimeout time.Duration `yaml:"publish_timeout"` // per publication; 0 means inherit the caller's context
}

type Pg struct {
	Host     string `yaml:"host" validate:"required"`
	Port     int    `yaml:"port" validate:"required"`
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password"`
	Dbname   string `yaml:"dbname" validate:"required"`
}

type Private struct {
	Pg            Pg     `yaml:"pg"`
	RedisPassword string `yaml:"redis_password"`
	JwtKey        string `yaml:"jwt_key" validate:"required"`
}

// DSN is accepted by both lib/pq and pgx
func (p Pg) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		p.Host, p.Port, p.User, p.Password, p.Dbname)
}

func (s *Config) JwtKey() string {
	return s.Private.JwtKey
}

func (s *Config) JwtTTL() time.Duration {
	return s.Public.JwtTTL
}

func loadPath(configPath string, output interface{}) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist: %s", configPath)
	}
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("can't read config file %s: %w", configPath, err)
	}
	if err := yaml.Unmarshal(configFile, output); err != nil {
		return fmt.Errorf("can't unmarshal config file %s: %w", configPath, err)
	}
	return nil
}

// Load reads public.yaml and private.yaml from configFolder and validates required fields.
func Load(configFolder string) (*Config, error) {
	var public Public
	if err := loadPath(path.Join(configFolder, "public.yaml"), &public); err != nil {
		return nil, err
	}

	var private Private
	if err := loadPath(path.Join(configFolder, "private.yaml"), &private); err != nil {
		return nil, err
	}

	cfg := &Config{public, private}
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func MustLoad(configFolder string) *Config {
	cfg, err := Load(configFolder)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}
