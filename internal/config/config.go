package config

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v4"
)

// Defaults taken over from the original HDFC alert watcher.
const (
	DefaultSender   = "alerts@hdfcbank.net"
	DefaultPhrase   = "successfully credited to your account"
	DefaultInterval = 30
	DefaultMaxMsgs  = 10
)

// Config is the top-level application configuration.
type Config struct {
	LogLevel string  `yaml:"log_level"`
	Watchers []Watch `yaml:"watchers"`
}

// Watch describes one monitored mailbox and its transaction filter.
type Watch struct {
	Name                string  `yaml:"name"`
	Provider            string  `yaml:"provider"` // "gmail", "imap" or "pop3"
	Sender              string  `yaml:"sender"`
	Phrase              string  `yaml:"phrase"`
	PollIntervalSeconds int     `yaml:"poll_interval_seconds"`
	MaxResults          int     `yaml:"max_results"`
	SeenFile            string  `yaml:"seen_file"` // empty = in-memory seen set
	Gmail               Gmail   `yaml:"gmail"`
	IMAP                Mailbox `yaml:"imap"`
	POP3                Mailbox `yaml:"pop3"`
	Pattern             Pattern `yaml:"pattern"`
}

// Gmail holds Gmail API credential locations.
type Gmail struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
}

// Mailbox holds connection settings shared by the IMAP and POP3 providers.
type Mailbox struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	UseTLS   bool   `yaml:"use_tls"`
	Folder   string `yaml:"folder"` // IMAP only
}

// Pattern overrides the transaction extraction phrases. Empty fields keep
// the defaults compiled into the extractor.
type Pattern struct {
	CurrencyMarker  string `yaml:"currency_marker"`
	CreditPhrase    string `yaml:"credit_phrase"`
	ReferencePhrase string `yaml:"reference_phrase"`
}

// PollInterval returns the polling interval as a time.Duration.
func (w *Watch) PollInterval() time.Duration {
	if w.PollIntervalSeconds <= 0 {
		return DefaultInterval * time.Second
	}
	return time.Duration(w.PollIntervalSeconds) * time.Second
}

// GetMaxResults returns the per-cycle result cap, defaulting to 10.
func (w *Watch) GetMaxResults() int {
	if w.MaxResults <= 0 {
		return DefaultMaxMsgs
	}
	return w.MaxResults
}

// GetSender returns the sender filter, defaulting to the HDFC alert address.
func (w *Watch) GetSender() string {
	if w.Sender == "" {
		return DefaultSender
	}
	return w.Sender
}

// GetPhrase returns the body phrase filter, defaulting to the credit phrase.
func (w *Watch) GetPhrase() string {
	if w.Phrase == "" {
		return DefaultPhrase
	}
	return w.Phrase
}

// GetFolder returns the IMAP folder name, defaulting to "INBOX".
func (m *Mailbox) GetFolder() string {
	if m.Folder == "" {
		return "INBOX"
	}
	return m.Folder
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{
		LogLevel: "info",
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Watchers) == 0 {
		return fmt.Errorf("at least one watcher is required")
	}
	for i, w := range c.Watchers {
		label := w.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}
		switch w.Provider {
		case "gmail":
			if w.Gmail.CredentialsFile == "" {
				return fmt.Errorf("watcher %s: gmail.credentials_file is required", label)
			}
			if w.Gmail.TokenFile == "" {
				return fmt.Errorf("watcher %s: gmail.token_file is required", label)
			}
		case "imap":
			if err := w.IMAP.validate(); err != nil {
				return fmt.Errorf("watcher %s: imap.%w", label, err)
			}
		case "pop3":
			if err := w.POP3.validate(); err != nil {
				return fmt.Errorf("watcher %s: pop3.%w", label, err)
			}
		default:
			return fmt.Errorf("watcher %s: provider must be gmail, imap or pop3", label)
		}
	}
	return nil
}

func (m *Mailbox) validate() error {
	if m.Host == "" {
		return fmt.Errorf("host is required")
	}
	if m.Port == 0 {
		return fmt.Errorf("port is required")
	}
	return nil
}
