package internal

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Auth modes for the JSON API.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// DefaultCookieSecret is the signing key used when none is configured.
const DefaultCookieSecret = "super-secret-change-me"

// Config represents the application configuration.
type Config struct {
	App   ApplicationConfig `yaml:"app"`
	Links LinksConfig       `yaml:"links"`
	QR    QRConfig          `yaml:"qr"`
	Admin AdminConfig       `yaml:"admin"`
	Auth  AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Links.Validate(); err != nil {
		return err
	}
	if err := c.QR.Validate(); err != nil {
		return err
	}
	if err := c.Admin.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplyEnv overrides file values with the environment variables the
// service has always honoured.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.App.HTTP.Port = port
	}
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("BASE_URL", &c.App.BaseURL)
	set("LINKS_FILE", &c.Links.Path)
	set("LOGO_PATH", &c.QR.LogoPath)
	set("ADMIN_USERNAME", &c.Admin.Username)
	set("ADMIN_PASSWORD", &c.Admin.Password)
	set("COOKIE_SECRET", &c.Admin.CookieSecret)
	if v, ok := lookup("API_TOKEN"); ok && v != "" {
		c.Auth.Mode = AuthModeToken
		c.Auth.Token = v
	}
	if v, ok := lookup("NODE_ENV"); ok && v == "production" {
		c.Admin.SecureCookie = true
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
	// BaseURL prefixes slugs in generated QR codes. Empty means
	// http://localhost:<port>.
	BaseURL string `yaml:"base_url"`
	Metrics bool   `yaml:"metrics"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, is.URL),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// PublicBaseURL returns the base URL used to build redirect links.
func (c *ApplicationConfig) PublicBaseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return fmt.Sprintf("http://localhost:%d", c.HTTP.Port)
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// LinksConfig locates the links file.
type LinksConfig struct {
	Path string `yaml:"path"`
	// DefaultURL is used when the file has no _default entry.
	DefaultURL string `yaml:"default_url"`
}

// Validate validates the links configuration.
func (c *LinksConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.DefaultURL, validation.Required, is.URL),
	)
}

// QRConfig holds QR rendering configuration.
type QRConfig struct {
	LogoPath string `yaml:"logo_path"`
}

// Validate validates the QR configuration.
func (c *QRConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LogoPath, validation.Required),
	)
}

// AdminConfig holds the admin UI credentials and session settings.
type AdminConfig struct {
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	CookieSecret string `yaml:"cookie_secret"`
	SecureCookie bool   `yaml:"secure_cookie"`
}

// Validate validates the admin configuration.
func (c *AdminConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Username, validation.Required),
		validation.Field(&c.Password, validation.Required),
		validation.Field(&c.CookieSecret, validation.Required, validation.Length(16, 0)),
	)
}

// AuthConfig holds JSON API authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): the JSON API is not mounted.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when the JSON API is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 3000,
			},
			Metrics: true,
		},
		Links: LinksConfig{
			Path:       "./links.json",
			DefaultURL: "https://www.google.com",
		},
		QR: QRConfig{
			LogoPath: "./public/logo.png",
		},
		Admin: AdminConfig{
			Username:     "admin",
			Password:     "admin",
			CookieSecret: DefaultCookieSecret,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
