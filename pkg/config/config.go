package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	StoreDynamoDB = "dynamodb"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	AppEnv      string `envconfig:"APP_ENV" default:"production"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	StoreDriver string `envconfig:"STORE_DRIVER" default:"dynamodb"`

	AWSRegion            string `envconfig:"AWS_REGION" default:"ap-northeast-2"`
	DynamoDBEndpoint     string `envconfig:"DYNAMODB_ENDPOINT" default:""` // DynamoDB Local 엔드포인트
	DynamoDBCreateTables bool   `envconfig:"DYNAMODB_CREATE_TABLES" default:"false"`
	AccountTableName     string `envconfig:"ACCOUNT_TABLE_NAME" default:"accounts"`
	ItemTableName        string `envconfig:"ITEM_TABLE_NAME" default:"items"`
	OrderTableName       string `envconfig:"ORDER_TABLE_NAME" default:"orders"`

	MongoURI      string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"marketplace"`

	// empty disables event publishing
	KafkaBrokers string `envconfig:"KAFKA_BROKERS" default:""`
	KafkaTopic   string `envconfig:"KAFKA_TOPIC" default:"order-events"`

	JWTSecret  string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL   time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	BcryptCost int           `envconfig:"BCRYPT_COST" default:"10"`

	FrontendURL        string `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`
	InternalTLSEnabled bool   `envconfig:"INTERNAL_TLS_ENABLED" default:"false"`
	InternalTLSPort    string `envconfig:"INTERNAL_TLS_PORT" default:"8443"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreDynamoDB, StoreMongo, StoreMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
