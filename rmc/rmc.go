// Package rmc holds the runtime state of the console: the loaded
// configuration, paths and connection ids.
package rmc

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/mjl-/sconf"

	"github.com/sparklive/rustmailerctl/config"
	"github.com/sparklive/rustmailerctl/mlog"
)

var pkglog = mlog.New("rmc", nil)

// ConfigPath is set early in program startup, other files are looked up
// relative to its directory.
var ConfigPath string

var ErrConfig = errors.New("config error")

// Config is the processed version of the configuration file.
type Config struct {
	Static config.Static
	Log    map[string]slog.Level
}

var Conf = Config{Log: map[string]slog.Level{"": mlog.LevelError}}

// ConfigDirPath returns the path to "f". Either f itself when absolute, or
// interpreted relative to the directory of the current config file.
func ConfigDirPath(f string) string {
	if filepath.IsAbs(f) {
		return f
	}
	return filepath.Join(filepath.Dir(ConfigPath), f)
}

// DataDirPath returns the path to "f". Either f itself when absolute, or
// interpreted relative to the data directory from the currently active
// configuration.
func DataDirPath(f string) string {
	if filepath.IsAbs(f) {
		return f
	}
	return filepath.Join(ConfigDirPath(Conf.Static.DataDir), f)
}

// MustLoadConfig loads the config file, quitting on errors.
func MustLoadConfig() {
	errs := LoadConfig()
	if len(errs) == 1 {
		pkglog.Fatalx("loading config file", errs[0], slog.String("configfile", ConfigPath))
	} else if len(errs) > 0 {
		pkglog.Error("loading config file", slog.String("configfile", ConfigPath))
		for _, err := range errs {
			pkglog.Errorx("config error", err)
		}
		os.Exit(1)
	}
}

// LoadConfig parses and validates the config file and activates its log
// levels.
func LoadConfig() []error {
	var static config.Static
	if err := sconf.ParseFile(ConfigPath, &static); err != nil {
		return []error{fmt.Errorf("%w: parsing %s: %v", ErrConfig, ConfigPath, err)}
	}

	var errs []error
	if static.BaseURL == "" && !static.Development {
		errs = append(errs, fmt.Errorf("%w: BaseURL required", ErrConfig))
	} else if static.BaseURL != "" {
		u, err := url.Parse(static.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("%w: BaseURL must be an absolute http(s) URL, got %q", ErrConfig, static.BaseURL))
		}
	}
	if static.DataDir == "" {
		errs = append(errs, fmt.Errorf("%w: DataDir required", ErrConfig))
	}

	logLevels := map[string]slog.Level{}
	ll := static.LogLevel
	if ll == "" {
		ll = "info"
	}
	if level, ok := mlog.Levels[ll]; ok {
		logLevels[""] = level
	} else {
		errs = append(errs, fmt.Errorf("%w: unknown log level %q", ErrConfig, static.LogLevel))
	}
	for pkg, s := range static.PackageLogLevels {
		if level, ok := mlog.Levels[s]; ok {
			logLevels[pkg] = level
		} else {
			errs = append(errs, fmt.Errorf("%w: unknown log level %q for package %q", ErrConfig, s, pkg))
		}
	}
	if len(errs) > 0 {
		return errs
	}

	Conf.Static = static
	Conf.Log = logLevels
	mlog.SetConfig(logLevels)
	return nil
}

// WriteExampleConfig writes a documented example configuration file.
func WriteExampleConfig(w *os.File) error {
	static := config.Static{
		BaseURL:  "https://mail.example.com",
		DataDir:  "data",
		LogLevel: "info",
	}
	return sconf.Describe(w, &static)
}

var cid atomic.Int64

func init() {
	cid.Store(time.Now().UnixMilli())
}

// Cid returns a new unique id, for request logging.
func Cid() int64 {
	return cid.Add(1)
}
