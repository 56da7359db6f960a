package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                 string   `mapstructure:"PORT"`
	Env                  string   `mapstructure:"ENV"`
	CMSAPIBaseURL        string   `mapstructure:"CMS_API_BASE_URL"`
	LicenseTokenTTL      int      `mapstructure:"LICENSE_TOKEN_TTL"`
	MetadataCacheTTL     int      `mapstructure:"METADATA_CACHE_TTL"`
	CodeCacheTTL         int      `mapstructure:"CODE_CACHE_TTL"`
	CMSRequestIntervalMS int      `mapstructure:"CMS_REQUEST_INTERVAL_MS"`
	SearchArticleLimit   int      `mapstructure:"SEARCH_ARTICLE_LIMIT"`
	CORSOrigins          []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS         float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst       int      `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout       int      `mapstructure:"REQUEST_TIMEOUT"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("CMS_API_BASE_URL", "https://api.coverage.cms.gov")
	v.SetDefault("LICENSE_TOKEN_TTL", 3500)
	v.SetDefault("METADATA_CACHE_TTL", 3600)
	v.SetDefault("CODE_CACHE_TTL", 3600)
	v.SetDefault("CMS_REQUEST_INTERVAL_MS", 100)
	v.SetDefault("SEARCH_ARTICLE_LIMIT", 50)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("REQUEST_TIMEOUT", 60)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("CMS_API_BASE_URL")
	v.BindEnv("LICENSE_TOKEN_TTL")
	v.BindEnv("METADATA_CACHE_TTL")
	v.BindEnv("CODE_CACHE_TTL")
	v.BindEnv("CMS_REQUEST_INTERVAL_MS")
	v.BindEnv("SEARCH_ARTICLE_LIMIT")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("REQUEST_TIMEOUT")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// RequestInterval returns the minimum spacing between upstream CMS requests.
func (c *Config) RequestInterval() time.Duration {
	return time.Duration(c.CMSRequestIntervalMS) * time.Millisecond
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.CMSAPIBaseURL == "" {
		return fmt.Errorf("CMS_API_BASE_URL is required")
	}
	if !strings.HasPrefix(c.CMSAPIBaseURL, "http://") && !strings.HasPrefix(c.CMSAPIBaseURL, "https://") {
		return fmt.Errorf("CMS_API_BASE_URL must be an http(s) URL, got %q", c.CMSAPIBaseURL)
	}
	if c.LicenseTokenTTL <= 0 {
		return fmt.Errorf("LICENSE_TOKEN_TTL must be positive, got %d", c.LicenseTokenTTL)
	}
	if c.SearchArticleLimit <= 0 {
		return fmt.Errorf("SEARCH_ARTICLE_LIMIT must be positive, got %d", c.SearchArticleLimit)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %d", c.RequestTimeout)
	}
	return nil
}
