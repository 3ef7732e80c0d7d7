package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Setting keys, as used in the settings file and by Get/Set.
const (
	KeyAPIKey     = "apiKey"
	KeyBaseURL    = "baseUrl"
	KeyModelName  = "modelName"
	KeyWebDAVURL  = "webdavUrl"
	KeyWebDAVUser = "webdavUser"
	KeyWebDAVPass = "webdavPass"
)

// secretKeys are masked by Redacted.
var secretKeys = map[string]bool{
	KeyAPIKey:     true,
	KeyWebDAVPass: true,
}

// ErrUnknownKey is returned by Get and Set for a key that is not a setting.
var ErrUnknownKey = errors.New("unknown setting")

// Settings is the full set of user settings. Empty means unset.
type Settings struct {
	APIKey     string `yaml:"apiKey,omitempty"`
	BaseURL    string `yaml:"baseUrl,omitempty"`
	ModelName  string `yaml:"modelName,omitempty"`
	WebDAVURL  string `yaml:"webdavUrl,omitempty"`
	WebDAVUser string `yaml:"webdavUser,omitempty"`
	WebDAVPass string `yaml:"webdavPass,omitempty"`
}

// LLM is the remote parser configuration.
type LLM struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Validate returns a MissingError if the API key is not set.
func (c LLM) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return &MissingError{Key: KeyAPIKey}
	}
	return nil
}

// WebDAV is the remote backup location.
type WebDAV struct {
	URL      string
	User     string
	Password string
}

// Validate returns a MissingError if the server URL is not set.
func (c WebDAV) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return &MissingError{Key: KeyWebDAVURL}
	}
	return nil
}

// LLM returns the remote parser view of the settings.
func (s Settings) LLM() LLM {
	return LLM{
		APIKey:  strings.TrimSpace(s.APIKey),
		BaseURL: strings.TrimSpace(s.BaseURL),
		Model:   strings.TrimSpace(s.ModelName),
	}
}

// WebDAV returns the backup location view of the settings.
func (s Settings) WebDAV() WebDAV {
	return WebDAV{
		URL:      strings.TrimSpace(s.WebDAVURL),
		User:     s.WebDAVUser,
		Password: s.WebDAVPass,
	}
}

// fields maps setting keys to the Settings field holding them.
func (s *Settings) fields() map[string]*string {
	return map[string]*string{
		KeyAPIKey:     &s.APIKey,
		KeyBaseURL:    &s.BaseURL,
		KeyModelName:  &s.ModelName,
		KeyWebDAVURL:  &s.WebDAVURL,
		KeyWebDAVUser: &s.WebDAVUser,
		KeyWebDAVPass: &s.WebDAVPass,
	}
}

// Keys returns every setting key in sorted order.
func Keys() []string {
	var s Settings
	keys := make([]string, 0, 6)
	for k := range s.fields() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value of one setting.
func (s Settings) Get(key string) (string, error) {
	p, ok := s.fields()[key]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownKey, key)
	}
	return *p, nil
}

// Set changes one setting in place.
func (s *Settings) Set(key, value string) error {
	p, ok := s.fields()[key]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownKey, key)
	}
	*p = value
	return nil
}

// Redacted returns every key with its value, secrets masked.
func (s Settings) Redacted() map[string]string {
	out := make(map[string]string, 6)
	for k, p := range s.fields() {
		v := *p
		if secretKeys[k] && v != "" {
			v = "********"
		}
		out[k] = v
	}
	return out
}

// Provider hands out the settings current at call time.
type Provider interface {
	Settings() Settings
}

// Static is a Provider over a fixed value.
type Static Settings

// Settings returns s.
func (s Static) Settings() Settings {
	return Settings(s)
}

// overrides are the environment variables that take precedence over the file.
type overrides struct {
	APIKey     string `env:"INTELLITODO_API_KEY"`
	BaseURL    string `env:"INTELLITODO_BASE_URL"`
	ModelName  string `env:"INTELLITODO_MODEL"`
	WebDAVURL  string `env:"INTELLITODO_WEBDAV_URL"`
	WebDAVUser string `env:"INTELLITODO_WEBDAV_USER"`
	WebDAVPass string `env:"INTELLITODO_WEBDAV_PASS"`
}

func (o overrides) apply(s Settings) Settings {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&s.APIKey, o.APIKey)
	set(&s.BaseURL, o.BaseURL)
	set(&s.ModelName, o.ModelName)
	set(&s.WebDAVURL, o.WebDAVURL)
	set(&s.WebDAVUser, o.WebDAVUser)
	set(&s.WebDAVPass, o.WebDAVPass)
	return s
}

// File is a Provider backed by the settings file plus environment
// overrides. It is safe for concurrent use.
type File struct {
	path string

	mu     sync.RWMutex
	stored Settings
}

// DefaultPath returns $XDG_CONFIG_HOME/intellitodo/config.yaml, falling back
// to ~/.config/intellitodo/config.yaml.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "intellitodo", "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(home, ".config", "intellitodo", "config.yaml"), nil
}

// Load reads the settings file at path. A missing file yields empty settings.
func Load(path string) (*File, error) {
	f := &File{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &f.stored); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return f, nil
}

// Path returns the settings file location.
func (f *File) Path() string {
	return f.path
}

// Settings returns the stored settings with environment overrides applied.
// The environment is read on every call.
func (f *File) Settings() Settings {
	f.mu.RLock()
	s := f.stored
	f.mu.RUnlock()

	var o overrides
	if err := env.Parse(&o); err != nil {
		// Only malformed struct tags make Parse fail; plain strings cannot.
		return s
	}
	return o.apply(s)
}

// Stored returns the settings as written in the file, without overrides.
func (f *File) Stored() Settings {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.stored
}

// Get returns the stored value of one setting.
func (f *File) Get(key string) (string, error) {
	return f.Stored().Get(key)
}

// Set changes one stored setting. Call Save to persist it.
func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stored.Set(key, value)
}

// Save writes the stored settings back to the file with 0600 permissions.
func (f *File) Save() error {
	f.mu.RLock()
	data, err := yaml.Marshal(f.stored)
	f.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", f.path, err)
	}
	return nil
}
