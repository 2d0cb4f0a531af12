// Package config carga la configuración del server desde YAML con overrides
// por variables de entorno.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/janus/internal/domain"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr   string `yaml:"addr"`
		Issuer string `yaml:"issuer"`
		// Pantallas del host para login y consentimiento.
		LoginURL   string `yaml:"login_url"`
		ConsentURL string `yaml:"consent_url"`
		// Página donde el usuario teclea el user_code del device flow.
		VerificationURI string `yaml:"verification_uri"`
	} `yaml:"server"`

	Storage struct {
		// memory | redis | postgres
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
		Redis  struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Sweep struct {
			Interval time.Duration `yaml:"interval"`
		} `yaml:"sweep"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		TTL         time.Duration `yaml:"ttl"`
		NegativeTTL time.Duration `yaml:"negative_ttl"`
	} `yaml:"cache"`

	Keys struct {
		// File con la clave de firma (ver `janus keys generate`). Vacío genera
		// una clave efímera al arrancar.
		File string `yaml:"file"`
	} `yaml:"keys"`

	Session struct {
		CookieName string        `yaml:"cookie_name"`
		TTL        time.Duration `yaml:"ttl"`
	} `yaml:"session"`

	Lifetimes struct {
		AuthorizationCode time.Duration `yaml:"authorization_code"`
		AccessToken       time.Duration `yaml:"access_token"`
		IdentityToken     time.Duration `yaml:"identity_token"`
		RefreshToken      time.Duration `yaml:"refresh_token"`
		DeviceCode        time.Duration `yaml:"device_code"`
		Consent           time.Duration `yaml:"consent"`
	} `yaml:"lifetimes"`

	Device struct {
		// Interval mínimo entre polls, en segundos.
		Interval int `yaml:"interval"`
	} `yaml:"device"`

	Rate struct {
		Enabled     bool          `yaml:"enabled"`
		MaxRequests int           `yaml:"max_requests"`
		Window      time.Duration `yaml:"window"`
	} `yaml:"rate"`

	// Catálogo estático: clients y resources en memoria. Deployments grandes
	// cargan esto de una base externa detrás de los mismos stores.
	Clients           []domain.Client           `yaml:"clients"`
	IdentityResources []domain.IdentityResource `yaml:"identity_resources"`
	APIScopes         []domain.APIScope         `yaml:"api_scopes"`
	APIResources      []domain.APIResource      `yaml:"api_resources"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.Issuer == "" {
		c.Server.Issuer = "http://localhost:8080"
	}
	if c.Server.LoginURL == "" {
		c.Server.LoginURL = "/account/login"
	}
	if c.Server.ConsentURL == "" {
		c.Server.ConsentURL = "/account/consent"
	}
	if c.Server.VerificationURI == "" {
		c.Server.VerificationURI = c.Server.Issuer + "/account/device"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.Redis.Prefix == "" {
		c.Storage.Redis.Prefix = "janus"
	}
	if c.Storage.Sweep.Interval == 0 {
		c.Storage.Sweep.Interval = time.Minute
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = time.Minute
	}
	if c.Cache.NegativeTTL == 0 {
		c.Cache.NegativeTTL = 10 * time.Second
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "janus.session"
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 12 * time.Hour
	}
	if c.Lifetimes.AuthorizationCode == 0 {
		c.Lifetimes.AuthorizationCode = 5 * time.Minute
	}
	if c.Lifetimes.AccessToken == 0 {
		c.Lifetimes.AccessToken = time.Hour
	}
	if c.Lifetimes.IdentityToken == 0 {
		c.Lifetimes.IdentityToken = 5 * time.Minute
	}
	if c.Lifetimes.RefreshToken == 0 {
		c.Lifetimes.RefreshToken = 30 * 24 * time.Hour
	}
	if c.Lifetimes.DeviceCode == 0 {
		c.Lifetimes.DeviceCode = 10 * time.Minute
	}
	if c.Device.Interval == 0 {
		c.Device.Interval = 5
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 60
	}
	if c.Rate.Window == 0 {
		c.Rate.Window = time.Minute
	}

	c.applyEnvOverrides()
	return &c, nil
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func getEnvDur(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

// applyEnvOverrides pisa el YAML con variables de entorno.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("SERVER_ISSUER"); ok {
		c.Server.Issuer = v
	}
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("STORAGE_REDIS_ADDR"); ok {
		c.Storage.Redis.Addr = v
	}
	if v, ok := getEnvInt("STORAGE_REDIS_DB"); ok {
		c.Storage.Redis.DB = v
	}
	if v, ok := getEnvStr("KEYS_FILE"); ok {
		c.Keys.File = v
	}
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("CACHE_REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvDur("CACHE_TTL"); ok {
		c.Cache.TTL = v
	}
	if v, ok := getEnvDur("SESSION_TTL"); ok {
		c.Session.TTL = v
	}
	if v, ok := getEnvInt("DEVICE_INTERVAL"); ok {
		c.Device.Interval = v
	}
}

// Validate chequea combinaciones inválidas antes de arrancar.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("config: postgres driver requires storage.dsn")
	}
	if c.Storage.Driver == "redis" && c.Storage.Redis.Addr == "" {
		return fmt.Errorf("config: redis driver requires storage.redis.addr")
	}
	switch c.Cache.Kind {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown cache kind %q", c.Cache.Kind)
	}
	if c.Cache.Kind == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("config: redis cache requires cache.redis.addr")
	}
	seen := make(map[string]struct{}, len(c.Clients))
	for _, cl := range c.Clients {
		if cl.ClientID == "" {
			return fmt.Errorf("config: client with empty client_id")
		}
		if _, dup := seen[cl.ClientID]; dup {
			return fmt.Errorf("config: duplicate client_id %q", cl.ClientID)
		}
		seen[cl.ClientID] = struct{}{}
	}
	return nil
}
