package config

import (
	"fmt"
	"log"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

type Listen struct {
	BindIp string `yaml:"bind_ip" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env-default:"8080"`
}

type MongoConfig struct {
	Enabled  bool   `yaml:"enabled" env-default:"false"`
	Host     string `yaml:"host" env-default:"localhost"`
	Port     string `yaml:"port" env-default:"27017"`
	User     string `yaml:"user" env-default:""`
	Password string `yaml:"password" env-default:""`
	Database string `yaml:"database" env-default:"evsync"`
}

type StripeConfig struct {
	APIKey            string `yaml:"api_key" env-default:""`
	WebhookSecret     string `yaml:"webhook_secret" env-default:""`
	SuccessURL        string `yaml:"success_url" env-default:""`
	Currency          string `yaml:"currency" env-default:"usd"`
	TestMode          bool   `yaml:"test_mode" env-default:"false"`
	TestKey           string `yaml:"test_key" env-default:""`
	TestWebhookSecret string `yaml:"test_webhook_secret" env-default:""`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled" env-default:"false"`
	ApiKey  string `yaml:"api_key" env-default:""`
}

// CrmConfig points at the legacy MySQL client directory; optional.
type CrmConfig struct {
	Enabled  bool   `yaml:"enabled" env-default:"false"`
	Host     string `yaml:"host" env-default:"localhost"`
	Port     string `yaml:"port" env-default:"3306"`
	User     string `yaml:"user" env-default:""`
	Password string `yaml:"password" env-default:""`
	Database string `yaml:"database" env-default:""`
	Prefix   string `yaml:"prefix" env-default:""`
}

type InviteConfig struct {
	// Default validity window for issued invite tokens, in hours.
	TTLHours int `yaml:"ttl_hours" env-default:"72"`
}

type Config struct {
	Env        string         `yaml:"env" env-default:"local"`
	AdminEmail string         `yaml:"admin_email" env-default:""`
	Listen     Listen         `yaml:"listen"`
	Mongo      MongoConfig    `yaml:"mongo"`
	Stripe     StripeConfig   `yaml:"stripe"`
	Telegram   TelegramConfig `yaml:"telegram"`
	Crm        CrmConfig      `yaml:"crm"`
	Invite     InviteConfig   `yaml:"invite"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("config: %s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
	})
	return instance
}
