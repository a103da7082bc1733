package config

import (
	"log"
	"sync"
	"time"

	"github.com/Astemirdum/library-management/pkg/auth"
	"github.com/Astemirdum/library-management/pkg/kafka"
	"github.com/Astemirdum/library-management/pkg/logger"
	"github.com/Astemirdum/library-management/pkg/postgres"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"LIBRARY_HTTP_HOST" default:"0.0.0.0"`
	Port         string        `yaml:"port" envconfig:"LIBRARY_HTTP_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ" default:"10s"`
	WriteTimeout time.Duration `yaml:"writeTimeout" ignored:"true"`
}

// Loans is the lending policy.
type Loans struct {
	DailyFine decimal.Decimal `yaml:"dailyFine" envconfig:"LOAN_DAILY_FINE" default:"0.50"`
	Period    time.Duration   `yaml:"period" envconfig:"LOAN_PERIOD" default:"336h"`
}

type Config struct {
	Server   HTTPServer       `yaml:"server"`
	Database postgres.DB      `yaml:"db"`
	Log      logger.Log       `yaml:"log"`
	Auth     auth.Config      `yaml:"auth"`
	Redis    auth.RedisConfig `yaml:"redis"`
	Kafka    kafka.Config     `yaml:"kafka"`
	Loans    Loans            `yaml:"loans"`
}

var (
	once sync.Once
	cfg  *Config
)

// NewConfig reads config from environment. Options override what was read.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		var config Config
		err := envconfig.Process("", &config)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		for _, op := range ops {
			op(&config)
		}
		cfg = &config
	})

	return cfg
}
