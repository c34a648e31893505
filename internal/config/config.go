// Package config loads platform credentials and runtime settings from a
// YAML file, a .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/blacktop/sendto/internal/events"
	"github.com/blacktop/sendto/internal/logutil"
	"github.com/blacktop/sendto/internal/publish"
	"github.com/blacktop/sendto/internal/transport"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// File is the on-disk configuration layout.
type File struct {
	Platforms map[string]map[string]string `yaml:"platforms"`
	Proxy     transport.ProxyConfig        `yaml:"proxy"`
	Events    struct {
		Kafka events.KafkaConfig `yaml:"kafka"`
	} `yaml:"events"`
	Concurrency int `yaml:"concurrency"`
}

// Settings is the merged configuration.
type Settings struct {
	Platforms   map[string]map[string]string
	Proxy       transport.ProxyConfig
	Kafka       events.KafkaConfig
	Concurrency int
}

type envBinding struct {
	platform string
	key      string
	env      string
}

var platformEnv = []envBinding{
	{publish.Telegram, "api_token", "TELEGRAM_BOT_TOKEN"},
	{publish.Telegram, "channel_username", "TELEGRAM_CHANNEL_USERNAME"},
	{publish.Telegram, "channel_signature", "TELEGRAM_CHANNEL_SIGNATURE"},
	{publish.Telegram, "parse_mode", "TELEGRAM_PARSE_MODE"},
	{publish.Twitter, "consumer_key", "TWITTER_CONSUMER_KEY"},
	{publish.Twitter, "consumer_secret", "TWITTER_CONSUMER_SECRET"},
	{publish.Twitter, "access_token", "TWITTER_ACCESS_TOKEN"},
	{publish.Twitter, "access_token_secret", "TWITTER_ACCESS_TOKEN_SECRET"},
	{publish.Facebook, "app_id", "FACEBOOK_APP_ID"},
	{publish.Facebook, "app_secret", "FACEBOOK_APP_SECRET"},
	{publish.Facebook, "page_access_token", "FACEBOOK_PAGE_ACCESS_TOKEN"},
	{publish.Facebook, "page_id", "FACEBOOK_PAGE_ID"},
	{publish.Facebook, "default_graph_version", "FACEBOOK_GRAPH_VERSION"},
	{publish.LinkedIn, "access_token", "LINKEDIN_ACCESS_TOKEN"},
	{publish.LinkedIn, "author_urn", "LINKEDIN_AUTHOR_URN"},
	{publish.LinkedIn, "organization_id", "LINKEDIN_ORGANIZATION_ID"},
	{publish.Discord, "bot_token", "DISCORD_BOT_TOKEN"},
	{publish.Discord, "channel_id", "DISCORD_CHANNEL_ID"},
	{publish.Discord, "webhook_url", "DISCORD_WEBHOOK_URL"},
	{publish.Slack, "bot_token", "SLACK_BOT_TOKEN"},
	{publish.Slack, "channel", "SLACK_CHANNEL"},
	{publish.Mastodon, "server", "MASTODON_SERVER"},
	{publish.Mastodon, "access_token", "MASTODON_ACCESS_TOKEN"},
	{publish.Bluesky, "handle", "BLUESKY_HANDLE"},
	{publish.Bluesky, "app_password", "BLUESKY_APP_PASSWORD"},
	{publish.Bluesky, "pds_url", "BLUESKY_PDS_URL"},
	{publish.Reddit, "client_id", "REDDIT_CLIENT_ID"},
	{publish.Reddit, "client_secret", "REDDIT_CLIENT_SECRET"},
	{publish.Reddit, "access_token", "REDDIT_ACCESS_TOKEN"},
	{publish.Reddit, "username", "REDDIT_USERNAME"},
	{publish.Reddit, "subreddit", "REDDIT_SUBREDDIT"},
	{publish.Instagram, "access_token", "INSTAGRAM_ACCESS_TOKEN"},
	{publish.Instagram, "instagram_account_id", "INSTAGRAM_ACCOUNT_ID"},
	{publish.Pinterest, "access_token", "PINTEREST_ACCESS_TOKEN"},
	{publish.Pinterest, "board_id", "PINTEREST_BOARD_ID"},
	{publish.WhatsApp, "access_token", "WHATSAPP_ACCESS_TOKEN"},
	{publish.WhatsApp, "phone_number_id", "WHATSAPP_PHONE_NUMBER_ID"},
	{publish.WhatsApp, "recipient", "WHATSAPP_RECIPIENT"},
	{publish.Tumblr, "access_token", "TUMBLR_ACCESS_TOKEN"},
	{publish.Tumblr, "blog_identifier", "TUMBLR_BLOG_IDENTIFIER"},
}

// Option customises Load.
type Option func(*loader)

type loader struct {
	envFile string
	lookup  func(string) (string, bool)
}

// WithEnvFile sets the dotenv file to read; a missing file is ignored.
func WithEnvFile(path string) Option {
	return func(l *loader) { l.envFile = path }
}

// WithLookup replaces os.LookupEnv.
func WithLookup(lookup func(string) (string, bool)) Option {
	return func(l *loader) { l.lookup = lookup }
}

// Load reads path (optional), then the dotenv file, then the environment.
// Later sources override earlier ones key by key.
func Load(path string, opts ...Option) (*Settings, error) {
	l := &loader{envFile: ".env", lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(l)
	}

	var file File
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		logutil.Debugf("loaded config file %s", path)
	}

	dotenv := map[string]string{}
	if l.envFile != "" {
		values, err := godotenv.Read(l.envFile)
		switch {
		case err == nil:
			dotenv = values
			logutil.Debugf("loaded env file %s", l.envFile)
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read env file %s: %w", l.envFile, err)
		}
	}
	get := func(name string) string {
		if v, ok := l.lookup(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(dotenv[name])
	}

	s := &Settings{
		Platforms:   make(map[string]map[string]string),
		Proxy:       file.Proxy,
		Kafka:       file.Events.Kafka,
		Concurrency: file.Concurrency,
	}
	for name, values := range file.Platforms {
		s.Platforms[name] = make(map[string]string, len(values))
		for k, v := range values {
			s.Platforms[name][k] = v
		}
	}

	for _, b := range platformEnv {
		v := get(b.env)
		if v == "" {
			continue
		}
		name := s.platformKey(b.platform)
		if s.Platforms[name] == nil {
			s.Platforms[name] = map[string]string{}
		}
		s.Platforms[name][b.key] = v
	}

	overrideString(&s.Proxy.Type, get("SENDTO_PROXY_TYPE"))
	overrideString(&s.Proxy.Hostname, get("SENDTO_PROXY_HOST"))
	overrideString(&s.Proxy.Port, get("SENDTO_PROXY_PORT"))
	overrideString(&s.Proxy.Username, get("SENDTO_PROXY_USERNAME"))
	overrideString(&s.Proxy.Password, get("SENDTO_PROXY_PASSWORD"))
	if brokers := get("SENDTO_KAFKA_BROKERS"); brokers != "" {
		s.Kafka.Brokers = splitList(brokers)
	}
	overrideString(&s.Kafka.Topic, get("SENDTO_KAFKA_TOPIC"))

	return s, nil
}

// platformKey returns the key under which file values for platform are
// stored, so env overrides merge with "X:" or "Telegram:" file sections.
func (s *Settings) platformKey(platform string) string {
	for name := range s.Platforms {
		if canonical, _ := publish.CanonicalName(name); canonical == platform {
			return name
		}
	}
	return platform
}

// Publish validates the platform credentials into a publish.Config.
func (s *Settings) Publish() (*publish.Config, error) {
	return publish.NewConfig(s.Platforms, s.Proxy)
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
