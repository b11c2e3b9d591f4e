package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"leihlokal/internal/hours"
)

// publicPrefix is accepted in front of every key so env files written for
// the browser build keep working.
const publicPrefix = "NEXT_PUBLIC_"

// Brand is the storefront identity.
type Brand struct {
	Name     string `yaml:"name" json:"name"`
	Tagline  string `yaml:"tagline" json:"tagline"`
	Logo     string `yaml:"logo" json:"logo,omitempty"`
	Accent   string `yaml:"accent" json:"accent"`
	Location string `yaml:"location" json:"location"`
}

// Meta holds page metadata.
type Meta struct {
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
}

// Features toggles optional storefront behaviour.
type Features struct {
	Search             bool `yaml:"search" json:"search"`
	AvailabilityToggle bool `yaml:"availability_toggle" json:"availabilityToggle"`
	ItemIDs            bool `yaml:"item_ids" json:"itemIds"`
	DetailPages        bool `yaml:"detail_pages" json:"detailPages"`
	URLParams          bool `yaml:"url_params" json:"urlParams"`
	TimeSelection      bool `yaml:"time_selection" json:"timeSelection"`
	Deposit            bool `yaml:"deposit" json:"deposit"`
	Copies             bool `yaml:"copies" json:"copies"`
	CalendarButtons    bool `yaml:"calendar_buttons" json:"calendarButtons"`
}

// Limits bound cart size, pickup horizon and page size.
type Limits struct {
	CartItems    int `yaml:"cart_items" json:"cartItems"`
	PickupDays   int `yaml:"pickup_days" json:"pickupDays"`
	ItemsPerPage int `yaml:"items_per_page" json:"itemsPerPage"`
}

// Defaults are initial catalog settings.
type Defaults struct {
	AvailableOnly bool   `yaml:"available_only" json:"availableOnly"`
	Sort          string `yaml:"sort" json:"sort"`
}

type Config struct {
	Brand    Brand    `yaml:"brand"`
	Meta     Meta     `yaml:"meta"`
	Features Features `yaml:"features"`
	Limits   Limits   `yaml:"limits"`
	Defaults Defaults `yaml:"defaults"`
	Currency string   `yaml:"currency"`

	// HoursJSON is the raw weekly schedule, Hours its parsed form.
	HoursJSON string         `yaml:"hours_json"`
	Hours     hours.Schedule `yaml:"-"`

	API struct {
		BaseURL         string `yaml:"base_url"`
		TimeoutSeconds  int    `yaml:"timeout_seconds"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"api"`

	HTTP struct {
		Addr               string `yaml:"addr"`
		RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
		AdminAPIKey        string `yaml:"admin_api_key"`
	} `yaml:"http"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Storage struct {
		Cart            string `yaml:"cart"`
		TokenTTLMinutes int    `yaml:"token_ttl_minutes"`
	} `yaml:"storage"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Telegram struct {
		BotToken string  `yaml:"bot_token"`
		ChatIDs  []int64 `yaml:"chat_ids"`
		// Digest sends the day's pickups LeadMinutes before opening.
		Digest            bool `yaml:"digest"`
		DigestLeadMinutes int  `yaml:"digest_lead_minutes"`
	} `yaml:"telegram"`

	Audit struct {
		// RetentionDays bounds the reservation journal; 0 keeps everything.
		RetentionDays int `yaml:"retention_days"`
	} `yaml:"audit"`

	Sheets struct {
		CredentialsFile string `yaml:"credentials_file"`
		SpreadsheetID   string `yaml:"spreadsheet_id"`
	} `yaml:"sheets"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{
		Brand: Brand{
			Name:    "leih.lokal",
			Tagline: "Leihen statt kaufen",
			Accent:  "#000000",
		},
		Features: Features{
			Search:             true,
			AvailabilityToggle: true,
			ItemIDs:            true,
			DetailPages:        true,
			URLParams:          true,
			TimeSelection:      true,
			Deposit:            true,
			Copies:             true,
			CalendarButtons:    true,
		},
		Limits:    Limits{CartItems: 10, PickupDays: 28, ItemsPerPage: 24},
		Defaults:  Defaults{AvailableOnly: true, Sort: "name"},
		Currency:  "€",
		HoursJSON: hours.DefaultJSON,
	}
	cfg.API.TimeoutSeconds = 10
	cfg.HTTP.Addr = ":8080"
	cfg.HTTP.RateLimitPerMinute = 30
	cfg.Database.Path = "data/leihlokal.db"
	cfg.Storage.Cart = "sqlite"
	cfg.Storage.TokenTTLMinutes = 30
	cfg.Backup.IntervalHours = 24
	cfg.Backup.Path = "backups"
	cfg.Backup.RetentionDays = 14
	cfg.Audit.RetentionDays = 365
	cfg.Telegram.Digest = true
	cfg.Telegram.DigestLeadMinutes = 60
	cfg.Monitoring.HealthCheckPort = 8090
	cfg.Monitoring.PrometheusPort = 9090
	cfg.Log.Level = "info"
	cfg.Log.Format = "console"
	return cfg
}

// Load reads an optional .env file, an optional YAML file at path and then
// the environment. Environment values win over YAML, YAML over defaults.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		// Support ${ENV_VAR} placeholders in YAML config.
		data = []byte(os.ExpandEnv(string(data)))
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.Hours = hours.ParseOrDefault(cfg.HoursJSON)

	if cfg.Database.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

// lookup finds key directly or under the public prefix.
func (f lookupFunc) lookup(key string) (string, bool) {
	if v, ok := f(key); ok {
		return v, true
	}
	return f(publicPrefix + key)
}

func (f lookupFunc) str(key string, dst *string) {
	if v, ok := f.lookup(key); ok {
		*dst = v
	}
}

func (f lookupFunc) boolean(key string, dst *bool) {
	if v, ok := f.lookup(key); ok {
		*dst = parseBool(v)
	}
}

func (f lookupFunc) integer(key string, dst *int) {
	if v, ok := f.lookup(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

// parseBool treats "true" and "1" as true, anything else as false.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1"
}

func (c *Config) applyEnv(env lookupFunc) {
	env.str("BRAND_NAME", &c.Brand.Name)
	env.str("BRAND_TAGLINE", &c.Brand.Tagline)
	env.str("BRAND_LOGO", &c.Brand.Logo)
	env.str("BRAND_ACCENT", &c.Brand.Accent)
	env.str("BRAND_LOCATION", &c.Brand.Location)
	if c.Brand.Location == "" {
		c.Brand.Location = c.Brand.Name
	}
	env.str("META_TITLE", &c.Meta.Title)
	env.str("META_DESCRIPTION", &c.Meta.Description)
	if c.Meta.Title == "" {
		c.Meta.Title = c.Brand.Name + " - " + c.Brand.Tagline
	}
	if c.Meta.Description == "" {
		c.Meta.Description = "Reservieren Sie Gegenstande bei " + c.Brand.Name + " - nachhaltig und gemeinschaftlich."
	}

	env.boolean("FEATURE_SEARCH", &c.Features.Search)
	env.boolean("FEATURE_AVAILABILITY_TOGGLE", &c.Features.AvailabilityToggle)
	env.boolean("FEATURE_ITEM_IDS", &c.Features.ItemIDs)
	env.boolean("FEATURE_DETAIL_PAGES", &c.Features.DetailPages)
	env.boolean("FEATURE_URL_PARAMS", &c.Features.URLParams)
	env.boolean("FEATURE_TIME_SELECTION", &c.Features.TimeSelection)
	env.boolean("FEATURE_DEPOSIT", &c.Features.Deposit)
	env.boolean("FEATURE_COPIES", &c.Features.Copies)
	env.boolean("FEATURE_CALENDAR_BUTTONS", &c.Features.CalendarButtons)

	env.integer("LIMIT_CART_ITEMS", &c.Limits.CartItems)
	env.integer("LIMIT_PICKUP_DAYS", &c.Limits.PickupDays)
	env.integer("LIMIT_ITEMS_PER_PAGE", &c.Limits.ItemsPerPage)

	env.boolean("DEFAULT_AVAILABLE_ONLY", &c.Defaults.AvailableOnly)
	env.str("DEFAULT_SORT", &c.Defaults.Sort)
	env.str("DISPLAY_CURRENCY", &c.Currency)
	env.str("HOURS_JSON", &c.HoursJSON)

	env.str("API_BASE", &c.API.BaseURL)
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	env.integer("API_TIMEOUT_SECONDS", &c.API.TimeoutSeconds)
	env.integer("CACHE_TTL_SECONDS", &c.API.CacheTTLSeconds)

	env.str("HTTP_ADDR", &c.HTTP.Addr)
	env.integer("RATE_LIMIT_PER_MINUTE", &c.HTTP.RateLimitPerMinute)
	env.str("ADMIN_API_KEY", &c.HTTP.AdminAPIKey)

	env.str("DATABASE_PATH", &c.Database.Path)
	env.str("REDIS_ADDR", &c.Redis.Address)
	env.str("REDIS_PASSWORD", &c.Redis.Password)
	env.integer("REDIS_DB", &c.Redis.DB)

	env.str("CART_STORAGE", &c.Storage.Cart)
	c.Storage.Cart = strings.ToLower(strings.TrimSpace(c.Storage.Cart))
	env.integer("TOKEN_TTL_MINUTES", &c.Storage.TokenTTLMinutes)

	env.boolean("BACKUP_ENABLED", &c.Backup.Enabled)
	env.integer("BACKUP_INTERVAL_HOURS", &c.Backup.IntervalHours)
	env.str("BACKUP_PATH", &c.Backup.Path)
	env.integer("BACKUP_RETENTION_DAYS", &c.Backup.RetentionDays)

	env.integer("HEALTH_PORT", &c.Monitoring.HealthCheckPort)
	env.boolean("PROMETHEUS_ENABLED", &c.Monitoring.PrometheusEnabled)
	env.integer("PROMETHEUS_PORT", &c.Monitoring.PrometheusPort)

	env.str("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	if v, ok := env.lookup("TELEGRAM_CHAT_IDS"); ok {
		c.Telegram.ChatIDs = parseIDs(v)
	}
	env.boolean("TELEGRAM_DIGEST", &c.Telegram.Digest)
	env.integer("TELEGRAM_DIGEST_LEAD_MINUTES", &c.Telegram.DigestLeadMinutes)
	env.integer("AUDIT_RETENTION_DAYS", &c.Audit.RetentionDays)
	env.str("SHEETS_CREDENTIALS_FILE", &c.Sheets.CredentialsFile)
	env.str("SHEETS_SPREADSHEET_ID", &c.Sheets.SpreadsheetID)

	env.str("LOG_LEVEL", &c.Log.Level)
	env.str("LOG_FORMAT", &c.Log.Format)
}

// parseIDs parses a comma separated list, skipping invalid entries.
func parseIDs(v string) []int64 {
	var ids []int64
	for _, part := range strings.Split(v, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Validate reports settings the service cannot start without.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("API_BASE is required")
	}
	switch c.Storage.Cart {
	case "sqlite", "redis", "memory":
	default:
		return errors.New("CART_STORAGE must be sqlite, redis or memory")
	}
	if c.Storage.Cart == "redis" && c.Redis.Address == "" {
		return errors.New("CART_STORAGE=redis requires REDIS_ADDR")
	}
	return nil
}

// APITimeout is the per-request timeout for the record API.
func (c *Config) APITimeout() time.Duration {
	if c.API.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// CacheTTL is zero when caching is disabled.
func (c *Config) CacheTTL() time.Duration {
	if c.API.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.API.CacheTTLSeconds) * time.Second
}

// TokenTTL is how long a confirmation token stays redeemable.
func (c *Config) TokenTTL() time.Duration {
	if c.Storage.TokenTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Storage.TokenTTLMinutes) * time.Minute
}

// Public is the browser-facing part of the configuration.
type Public struct {
	Brand    Brand            `json:"brand"`
	Meta     Meta             `json:"meta"`
	Features Features         `json:"features"`
	Limits   Limits           `json:"limits"`
	Defaults Defaults         `json:"defaults"`
	Currency string           `json:"currency"`
	Hours    []hours.DayHours `json:"openingHours"`
}

// Public returns the subset safe to expose to clients.
func (c *Config) Public() Public {
	return Public{
		Brand:    c.Brand,
		Meta:     c.Meta,
		Features: c.Features,
		Limits:   c.Limits,
		Defaults: c.Defaults,
		Currency: c.Currency,
		Hours:    c.Hours.Format(),
	}
}
