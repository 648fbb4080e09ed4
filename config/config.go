package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxPayload   = 10 << 20
	DefaultFetchTimeout = 30 * time.Second
)

type Config struct {
	Addr         string        `yaml:"addr"`
	DBUrl        string        `yaml:"db_url"`
	Debug        bool          `yaml:"debug"`
	MaxPayload   int64         `yaml:"max_payload"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	PublicDir    string        `yaml:"public_dir"`

	// one-shot terminal sync, not read from file
	SyncURL    string `yaml:"-"`
	AssumeYes  bool   `yaml:"-"`
	ConfigFile string `yaml:"-"`
}

func ParseFlags() (cfg Config, err error) {
	return parse(flag.CommandLine, os.Args[1:])
}

func parse(fs *flag.FlagSet, args []string) (cfg Config, err error) {
	var host string
	fs.StringVar(&host, "host", "0.0.0.0", "listen host name")
	var port uint
	fs.UintVar(&port, "port", 8080, "listen port number")
	fs.StringVar(&cfg.DBUrl, "db-url", "fsurvey.sqlite", "path to SQLite3 DB file")
	fs.BoolVar(&cfg.Debug, "debug", false, "log at DEBUG level")
	fs.StringVar(&cfg.ConfigFile, "config", "", "optional YAML config file")
	fs.StringVar(&cfg.SyncURL, "sync", "", "sync the template at this URL and exit")
	fs.BoolVar(&cfg.AssumeYes, "yes", false, "accept template upgrades without asking")
	fs.Int64Var(&cfg.MaxPayload, "max-payload", DefaultMaxPayload, "max bytes of a captured file")
	fs.DurationVar(&cfg.FetchTimeout, "fetch-timeout", DefaultFetchTimeout, "timeout for template retrieval")
	fs.StringVar(&cfg.PublicDir, "public-dir", "public", "directory of static files")
	if err = fs.Parse(args); err != nil {
		return
	}

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))

	if cfg.ConfigFile != "" {
		var file Config
		file, err = LoadFile(cfg.ConfigFile)
		if err != nil {
			return
		}
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		cfg = overlay(cfg, file, set)
	}

	err = cfg.Validate()
	return
}

// LoadFile reads a YAML config file. Missing keys stay zero.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return cfg, nil
}

// overlay copies file values over flag defaults, except for flags that were
// given explicitly on the command line.
func overlay(cfg, file Config, set map[string]bool) Config {
	if file.Addr != "" && !set["host"] && !set["port"] {
		cfg.Addr = file.Addr
	}
	if file.DBUrl != "" && !set["db-url"] {
		cfg.DBUrl = file.DBUrl
	}
	if file.Debug && !set["debug"] {
		cfg.Debug = true
	}
	if file.MaxPayload != 0 && !set["max-payload"] {
		cfg.MaxPayload = file.MaxPayload
	}
	if file.FetchTimeout != 0 && !set["fetch-timeout"] {
		cfg.FetchTimeout = file.FetchTimeout
	}
	if file.PublicDir != "" && !set["public-dir"] {
		cfg.PublicDir = file.PublicDir
	}
	return cfg
}

func (cfg Config) Validate() error {
	if cfg.DBUrl == "" {
		return errors.New("missing parameter -db-url")
	}
	if cfg.MaxPayload <= 0 {
		return fmt.Errorf("invalid -max-payload %d", cfg.MaxPayload)
	}
	if cfg.FetchTimeout < 0 {
		return fmt.Errorf("invalid -fetch-timeout %s", cfg.FetchTimeout)
	}
	return nil
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}
