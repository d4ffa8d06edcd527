package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SecurityConfig struct {
	// PEM-encoded RSA keypair for access token signing. File paths; the
	// private key may be absent on instances that only verify.
	AccessPrivateKeyFile string
	AccessPublicKeyFile  string
	RefreshSecret        string
	AccessTTL            time.Duration
	RefreshTTL           time.Duration
	MfaTicketTTL         time.Duration
	ResetTokenTTL        time.Duration
	GraceWindow          time.Duration
	BcryptCost           int
	Issuer               string
}

type CookieConfig struct {
	Domain string
	Secure bool
}

type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type OAuthConfig struct {
	Google      OAuthProviderConfig
	GitHub      OAuthProviderConfig
	FrontendURL string
}

type RateLimitConfig struct {
	Attempts int
	Window   time.Duration
}

type MFAConfig struct {
	Issuer string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Security         SecurityConfig
	Cookie           CookieConfig
	OAuth            OAuthConfig
	RateLimit        RateLimitConfig
	MFA              MFAConfig
	AllowCORSOrigins []string
}

func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("AUTHGATE")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("security.accessprivatekeyfile", "certs/private.pem")
	v.SetDefault("security.accesspublickeyfile", "certs/public.pem")
	v.SetDefault("security.accessttl", "15m")
	v.SetDefault("security.refreshttl", "8760h") // 1 year
	v.SetDefault("security.mfaticketttl", "1m")
	v.SetDefault("security.resettokenttl", "15m")
	v.SetDefault("security.gracewindow", "30s")
	v.SetDefault("security.bcryptcost", 10)
	v.SetDefault("security.issuer", "auth-service")

	v.SetDefault("cookie.domain", "localhost")
	v.SetDefault("cookie.secure", true)

	v.SetDefault("ratelimit.attempts", 10)
	v.SetDefault("ratelimit.window", "1m")

	v.SetDefault("mfa.issuer", "Auth Service")
}
