package bot

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/EgorLis/slackrtm/pkg/rtm"
)

type Config struct {
	LogLevel   string            `yaml:"log_level"`
	LogFormat  string            `yaml:"log_format"` // text | json
	Workspaces []WorkspaceConfig `yaml:"workspaces"`
}

// WorkspaceConfig describes one RTM session. Token wins over TokenEnv.
type WorkspaceConfig struct {
	Name          string            `yaml:"name"`
	Token         string            `yaml:"token"`
	TokenEnv      string            `yaml:"token_env"`
	BaseURL       string            `yaml:"base_url"`
	ConnectMethod string            `yaml:"connect_method"` // rtm.connect | rtm.start
	AutoReconnect *bool             `yaml:"auto_reconnect"`
	PingInterval  time.Duration     `yaml:"ping_interval"`
	PingTimeout   time.Duration     `yaml:"ping_timeout"`
	MaxBackoff    time.Duration     `yaml:"max_backoff"`
	Proxy         map[string]string `yaml:"proxy"`
	Prefix        string            `yaml:"command_prefix"`
}

const defaultTokenEnv = "SLACK_BOT_TOKEN"

// Load reads a YAML config, fills in defaults and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "bot: read config")
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := &Config{
		LogLevel:  "info",
		LogFormat: "text",
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "bot: parse config")
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.Workspaces) == 0 {
		c.Workspaces = []WorkspaceConfig{{Name: "default"}}
	}
	for i := range c.Workspaces {
		w := &c.Workspaces[i]
		if w.Name == "" {
			w.Name = "default"
		}
		if w.Token == "" && w.TokenEnv == "" {
			w.TokenEnv = defaultTokenEnv
		}
		if w.ConnectMethod == "" {
			w.ConnectMethod = string(rtm.ConnectMethodConnect)
		}
		if w.PingInterval == 0 {
			w.PingInterval = rtm.DefaultPingInterval
		}
		if w.PingTimeout == 0 {
			w.PingTimeout = rtm.DefaultPingTimeout
		}
		if w.MaxBackoff == 0 {
			w.MaxBackoff = rtm.DefaultMaxBackoff
		}
		if w.Prefix == "" {
			w.Prefix = "!"
		}
	}
}

func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "bot: log_level")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return errors.Errorf("bot: log_format must be text or json, got %q", c.LogFormat)
	}
	seen := map[string]bool{}
	for _, w := range c.Workspaces {
		if seen[w.Name] {
			return errors.Errorf("bot: duplicate workspace %q", w.Name)
		}
		seen[w.Name] = true
		switch rtm.ConnectMethod(w.ConnectMethod) {
		case rtm.ConnectMethodConnect, rtm.ConnectMethodStart:
		default:
			return errors.Errorf("bot: workspace %q: unknown connect_method %q", w.Name, w.ConnectMethod)
		}
		if w.PingInterval < 0 || w.PingTimeout < 0 || w.MaxBackoff < 0 {
			return errors.Errorf("bot: workspace %q: durations must not be negative", w.Name)
		}
	}
	return nil
}

// Logger builds the process logger described by the config.
func (c *Config) Logger() *logrus.Logger {
	l := logrus.New()
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		l.SetLevel(lvl)
	}
	if c.LogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}

// ResolveToken returns the configured token or reads it from TokenEnv.
func (w WorkspaceConfig) ResolveToken() (string, error) {
	if w.Token != "" {
		return w.Token, nil
	}
	tok := strings.TrimSpace(os.Getenv(w.TokenEnv))
	if tok == "" {
		return "", errors.Errorf("bot: workspace %q: no token (set token or $%s)", w.Name, w.TokenEnv)
	}
	return tok, nil
}

// Options turns the workspace settings into session options.
func (w WorkspaceConfig) Options() []rtm.Option {
	opts := []rtm.Option{
		rtm.WithConnectMethod(rtm.ConnectMethod(w.ConnectMethod)),
		rtm.WithPingInterval(w.PingInterval),
		rtm.WithPingTimeout(w.PingTimeout),
		rtm.WithMaxBackoff(w.MaxBackoff),
	}
	if w.BaseURL != "" {
		opts = append(opts, rtm.WithBaseURL(w.BaseURL))
	}
	if w.AutoReconnect != nil {
		opts = append(opts, rtm.WithAutoReconnect(*w.AutoReconnect))
	}
	if len(w.Proxy) > 0 {
		opts = append(opts, rtm.WithProxy(w.Proxy))
	}
	return opts
}
