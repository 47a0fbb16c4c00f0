package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Security  SecurityConfig  `mapstructure:"security"`
	Data      DataConfig      `mapstructure:"data"`
	Quest     QuestConfig     `mapstructure:"quest"`
	Insurance InsuranceConfig `mapstructure:"insurance"`
	Skill     SkillConfig     `mapstructure:"skill"`
	Locale    LocaleConfig    `mapstructure:"locale"`
	Profile   ProfileConfig   `mapstructure:"profile"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`
	// AdminIPs restricts the admin routes to these addresses or CIDR ranges.
	AdminIPs []string `mapstructure:"admin_ips"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode" validate:"oneof=sqlite memory mysql"`
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn" validate:"required_if=Mode mysql"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
	// SlowQuery is the duration above which statements are logged at warn.
	SlowQuery time.Duration `mapstructure:"slow_query"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst" validate:"gte=0"`
	// Profile limits apply per authenticated profile on the game routes.
	ProfileRateLimitRPS   float64 `mapstructure:"profile_rate_limit_rps" validate:"gte=0"`
	ProfileRateLimitBurst int     `mapstructure:"profile_rate_limit_burst" validate:"gte=0"`
	// AllowedOrigins lists the SSE origins that are permitted.
	// An empty slice allows all origins.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DataConfig points at the static game database (quests, traders, items,
// locations, locales).
type DataConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// QuestConfig controls quest visibility. Map keys are lower-cased by viper.
type QuestConfig struct {
	BearOnlyQuests []string `mapstructure:"bear_only_quests"`
	UsecOnlyQuests []string `mapstructure:"usec_only_quests"`
	// EventQuests maps an event name to its quest ids. The "none" event
	// holds non-seasonal event quests.
	EventQuests                map[string][]string `mapstructure:"event_quests"`
	ActiveEvents               []string            `mapstructure:"active_events"`
	ShowNonSeasonalEventQuests bool                `mapstructure:"show_non_seasonal_event_quests"`
	// ProfileBlacklist maps a game version to quest ids it never sees.
	ProfileBlacklist map[string][]string `mapstructure:"profile_blacklist"`
	// ProfileWhitelist maps a quest id to the only game versions that see it.
	ProfileWhitelist    map[string][]string `mapstructure:"profile_whitelist"`
	MailRedeemTimeHours map[string]int      `mapstructure:"mail_redeem_time_hours"`
}

type InsuranceConfig struct {
	// ReturnChancePercent is keyed by trader id.
	ReturnChancePercent               map[string]float64 `mapstructure:"return_chance_percent"`
	MinAttachmentRoublePriceToBeTaken float64            `mapstructure:"min_attachment_rouble_price_to_be_taken" validate:"gte=0"`
	ChanceNoAttachmentsTakenPercent   float64            `mapstructure:"chance_no_attachments_taken_percent" validate:"gte=0,lte=100"`
	SimulateItemsBeingTaken           bool               `mapstructure:"simulate_items_being_taken"`
	StorageTime                       time.Duration      `mapstructure:"storage_time"`
	SweepInterval                     time.Duration      `mapstructure:"sweep_interval" validate:"gt=0"`
	SweepWorkers                      int                `mapstructure:"sweep_workers" validate:"min=1"`
}

type SkillConfig struct {
	ProgressRate float64 `mapstructure:"progress_rate" validate:"gt=0"`
	// GainMultipliers is keyed by lower-cased skill id.
	GainMultipliers map[string]float64 `mapstructure:"gain_multipliers"`
}

type LocaleConfig struct {
	Default string `mapstructure:"default" validate:"required"`
}

type ProfileConfig struct {
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
	LockRetry   time.Duration `mapstructure:"lock_retry"`
	Distributed bool          `mapstructure:"distributed_lock"`
}

// Defaults registers default values on v.
func Defaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/raidsim.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("database.slow_query", "200ms")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)
	v.SetDefault("security.profile_rate_limit_rps", 20)
	v.SetDefault("security.profile_rate_limit_burst", 40)
	v.SetDefault("data.path", "./data/database")
	v.SetDefault("quest.mail_redeem_time_hours", map[string]int{"default": 48})
	v.SetDefault("insurance.min_attachment_rouble_price_to_be_taken", 2000)
	v.SetDefault("insurance.chance_no_attachments_taken_percent", 10)
	v.SetDefault("insurance.simulate_items_being_taken", true)
	v.SetDefault("insurance.storage_time", "72h")
	v.SetDefault("insurance.sweep_interval", "60s")
	v.SetDefault("insurance.sweep_workers", 4)
	v.SetDefault("skill.progress_rate", 1)
	v.SetDefault("locale.default", "en")
	v.SetDefault("profile.lock_ttl", "30s")
	v.SetDefault("profile.lock_retry", "50ms")
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	Defaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints on cfg.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, ok := cfg.Quest.MailRedeemTimeHours["default"]; !ok {
		return fmt.Errorf("config: quest.mail_redeem_time_hours must contain a default entry")
	}
	return nil
}
