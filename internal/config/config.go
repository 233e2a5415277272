package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	FileName         = "pickle.yaml"
	DefaultHistoryDB = ".pickle/history.db"
	DefaultDebugPort = 3001
	DefaultTimeout   = 60 * time.Second
)

// Options is everything the runner needs from the outside world. It is read
// from pickle.yaml and then overridden by command-line flags.
type Options struct {
	Feature        string        `yaml:"feature"`
	JUnitOutput    string        `yaml:"junit_output"`
	JSONOutput     string        `yaml:"json_output"`
	LogFile        string        `yaml:"log_file"`
	HistoryDB      string        `yaml:"history_db"`
	Debug          bool          `yaml:"debug"`
	DebugPort      int           `yaml:"debug_port"`
	Watch          bool          `yaml:"watch"`
	WarnDuplicates bool          `yaml:"warn_duplicates"`
	Timeout        time.Duration `yaml:"timeout"`
	Verbose        bool          `yaml:"verbose"`
}

func Defaults() Options {
	return Options{
		DebugPort: DefaultDebugPort,
		Timeout:   DefaultTimeout,
	}
}

// Discover returns the config file to read. An explicit path must exist;
// otherwise pickle.yaml in dir is used when present.
func Discover(explicitPath, dir string) (string, bool, error) {
	if clean := strings.TrimSpace(explicitPath); clean != "" {
		path := filepath.Clean(clean)
		info, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("config file %q not found", path)
		}
		if err != nil {
			return "", false, fmt.Errorf("checking config path %q: %w", path, err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path %q is a directory", path)
		}
		return path, true, nil
	}

	path := filepath.Join(dir, FileName)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("checking config path %q: %w", path, err)
	}
	return path, !info.IsDir(), nil
}

// Load reads path on top of the defaults.
func Load(path string) (Options, error) {
	opts := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("%s: %w", path, err)
	}
	return opts, nil
}

// Resolve discovers and loads the config file, falling back to the defaults
// when there is none.
func Resolve(explicitPath string) (Options, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Options{}, fmt.Errorf("resolve working directory: %w", err)
	}
	path, found, err := Discover(explicitPath, cwd)
	if err != nil {
		return Options{}, err
	}
	if !found {
		return Defaults(), nil
	}
	return Load(path)
}

func (o Options) Validate() error {
	if o.DebugPort < 0 || o.DebugPort > 65535 {
		return fmt.Errorf("debug_port %d out of range", o.DebugPort)
	}
	if o.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", o.Timeout)
	}
	return nil
}
