package publish

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/blacktop/sendto/internal/logutil"
	"github.com/blacktop/sendto/internal/transport"
)

// Canonical platform names.
const (
	Telegram  = "telegram"
	Twitter   = "twitter"
	Facebook  = "facebook"
	LinkedIn  = "linkedin"
	Discord   = "discord"
	Slack     = "slack"
	Mastodon  = "mastodon"
	Bluesky   = "bluesky"
	Reddit    = "reddit"
	Instagram = "instagram"
	Pinterest = "pinterest"
	WhatsApp  = "whatsapp"
	Tumblr    = "tumblr"
)

// SupportedPlatforms lists every platform this module can publish to, in
// the order they are registered.
var SupportedPlatforms = []string{
	Telegram, Twitter, Facebook, LinkedIn, Discord, Slack, Mastodon, Bluesky,
	Reddit, Instagram, Pinterest, WhatsApp, Tumblr,
}

var aliases = map[string]string{
	"x":  Twitter,
	"fb": Facebook,
}

var requiredKeys = map[string][]string{
	Telegram:  {"api_token"},
	Twitter:   {"consumer_key", "consumer_secret", "access_token", "access_token_secret"},
	Facebook:  {"app_id", "app_secret", "page_access_token", "page_id"},
	LinkedIn:  {"access_token"},
	Discord:   {"bot_token", "channel_id"},
	Slack:     {"bot_token", "channel"},
	Mastodon:  {"server", "access_token"},
	Bluesky:   {"handle", "app_password"},
	Reddit:    {"client_id", "client_secret", "access_token", "username"},
	Instagram: {"access_token", "instagram_account_id"},
	Pinterest: {"access_token", "board_id"},
	WhatsApp:  {"access_token", "phone_number_id"},
	Tumblr:    {"access_token", "blog_identifier"},
}

// CanonicalName maps a user supplied name ("X", " Telegram ") to its
// canonical form. ok is false for unknown platforms.
func CanonicalName(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, found := aliases[name]; found {
		name = alias
	}
	return name, slices.Contains(SupportedPlatforms, name)
}

// RequiredKeys returns the credential keys platform cannot work without.
func RequiredKeys(platform string) []string {
	return slices.Clone(requiredKeys[platform])
}

// MissingKeys returns the required keys absent or blank in values.
func MissingKeys(platform string, values map[string]string) []string {
	var missing []string
	for _, key := range requiredKeys[platform] {
		if strings.TrimSpace(values[key]) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// Credentials is the immutable key/value credential bundle of one platform.
type Credentials struct {
	platform string
	values   map[string]string
}

// NewCredentials copies values into a credential bundle.
func NewCredentials(platform string, values map[string]string) Credentials {
	return Credentials{platform: platform, values: maps.Clone(values)}
}

// Platform returns the platform the credentials belong to.
func (c Credentials) Platform() string { return c.platform }

// Get returns key, or def when it is missing or blank.
func (c Credentials) Get(key, def string) string {
	if v := strings.TrimSpace(c.values[key]); v != "" {
		return v
	}
	return def
}

// Require returns a MissingCredentialsError naming every absent required key.
func (c Credentials) Require() error {
	if missing := MissingKeys(c.platform, c.values); len(missing) > 0 {
		return MissingCredentialsError{Platform: c.platform, Keys: missing}
	}
	return nil
}

// Config is the validated startup configuration: credentials of every
// configured platform plus cross-cutting options.
type Config struct {
	platforms map[string]Credentials
	Proxy     transport.ProxyConfig
}

// NewConfig validates raw per-platform credential maps. Platforms missing a
// required key are left out without error; unknown platform names are
// rejected.
func NewConfig(raw map[string]map[string]string, proxy transport.ProxyConfig) (*Config, error) {
	cfg := &Config{platforms: make(map[string]Credentials), Proxy: proxy}

	var unknown []string
	for name, values := range raw {
		canonical, ok := CanonicalName(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if missing := MissingKeys(canonical, values); len(missing) > 0 {
			logutil.Debugf("%s not configured (missing %s)", canonical, strings.Join(missing, ", "))
			continue
		}
		cfg.platforms[canonical] = NewCredentials(canonical, values)
	}

	if len(unknown) > 0 {
		slices.Sort(unknown)
		return nil, fmt.Errorf("unknown platform(s) in configuration: %s", strings.Join(unknown, ", "))
	}
	return cfg, nil
}

// HasPlatform reports whether platform passed credential validation.
func (c *Config) HasPlatform(platform string) bool {
	_, ok := c.platforms[platform]
	return ok
}

// Credentials returns the credentials of a configured platform.
func (c *Config) Credentials(platform string) (Credentials, bool) {
	creds, ok := c.platforms[platform]
	return creds, ok
}

// Platforms returns the configured platform names in canonical order.
func (c *Config) Platforms() []string {
	var names []string
	for _, name := range SupportedPlatforms {
		if c.HasPlatform(name) {
			names = append(names, name)
		}
	}
	return names
}
