// Package settings resolves command defaults from the profile file, a .env file and the environment.
//
// Precedence, highest first: command flags (applied by the caller), DOCMIGRATE_* environment
// variables, the selected profile, the top level of the profile file, built-in defaults.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/docmigrate/docmigrate/pkg/constants"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "DOCMIGRATE_"

// ErrUnknownProfile is returned when the requested profile is not in the file.
var ErrUnknownProfile = errors.New("unknown profile")

// Values are the settable options shared by every action.
type Values struct {
	Endpoint    string        `toml:"endpoint" env:"ENDPOINT"`
	APIKey      string        `toml:"api_key" env:"API_KEY"`
	Project     string        `toml:"project" env:"PROJECT"`
	Database    string        `toml:"database" env:"DATABASE"`
	Collection  string        `toml:"collection" env:"COLLECTION"`
	Limit       int           `toml:"limit" env:"LIMIT"`
	Dir         string        `toml:"dir" env:"DIR"`
	Timeout     time.Duration `toml:"timeout" env:"TIMEOUT"`
	QuerySyntax string        `toml:"query_syntax" env:"QUERY_SYNTAX"`

	Recipients []string `toml:"age_recipients" env:"AGE_RECIPIENTS" envSeparator:","`
	Identity   string   `toml:"age_identity" env:"AGE_IDENTITY"`

	LogFile string `toml:"log_file" env:"LOG_FILE"`
	Verbose bool   `toml:"verbose" env:"VERBOSE"`
}

// File is the layout of the profile file. Top level keys apply to every profile.
//
//	endpoint = "https://cloud.appwrite.io/v1"
//	project = "app"
//
//	[profiles.staging]
//	database = "staging"
type File struct {
	Values
	Profiles map[string]Values `toml:"profiles"`
}

// Sources tells Load where to look.
type Sources struct {
	// ConfigFile is an explicit profile file path. It must exist when set.
	// When empty, DefaultPath is used if present.
	ConfigFile string
	Profile    string
	// DotEnv is loaded into the process environment without overriding it. Defaults to ".env".
	DotEnv string
	// Environ replaces the process environment, mostly for tests.
	Environ map[string]string
}

// Defaults returns the built-in values.
func Defaults() Values {
	return Values{
		Limit:   constants.DefaultLimit,
		Dir:     constants.DefaultDir,
		Timeout: constants.DefaultHTTPTimeout,
	}
}

// DefaultPath returns the profile file location under the user config directory.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "docmigrate", "config.toml"), nil
}

// Load merges defaults, the profile file and the environment.
func Load(src Sources) (Values, error) {
	values := Defaults()

	file, err := loadFile(src.ConfigFile)
	if err != nil {
		return values, err
	}
	if file != nil {
		values = values.Merge(file.Values)
	}
	if src.Profile != "" {
		if file == nil {
			return values, fmt.Errorf("%w %q: no profile file", ErrUnknownProfile, src.Profile)
		}
		profile, ok := file.Profiles[src.Profile]
		if !ok {
			return values, fmt.Errorf("%w %q", ErrUnknownProfile, src.Profile)
		}
		values = values.Merge(profile)
	}

	fromEnv, err := loadEnv(src)
	if err != nil {
		return values, err
	}
	return values.Merge(fromEnv), nil
}

func loadFile(path string) (*File, error) {
	explicit := path != ""
	if !explicit {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, nil
		}
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil, nil
		}
		return nil, fmt.Errorf("profile file: %w", err)
	}

	var file File
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("profile file %s: %w", path, err)
	}
	return &file, nil
}

func loadEnv(src Sources) (Values, error) {
	var values Values
	opts := env.Options{Prefix: EnvPrefix}
	if src.Environ != nil {
		opts.Environment = src.Environ
	} else {
		dotEnv := src.DotEnv
		if dotEnv == "" {
			dotEnv = ".env"
		}
		if err := godotenv.Load(dotEnv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return values, fmt.Errorf("load %s: %w", dotEnv, err)
		}
	}
	if err := env.Parse(&values, opts); err != nil {
		return values, fmt.Errorf("environment: %w", err)
	}
	return values, nil
}

// Merge returns v with every non-zero field of over applied on top.
func (v Values) Merge(over Values) Values {
	setString(&v.Endpoint, over.Endpoint)
	setString(&v.APIKey, over.APIKey)
	setString(&v.Project, over.Project)
	setString(&v.Database, over.Database)
	setString(&v.Collection, over.Collection)
	setString(&v.Dir, over.Dir)
	setString(&v.QuerySyntax, over.QuerySyntax)
	setString(&v.Identity, over.Identity)
	setString(&v.LogFile, over.LogFile)
	if over.Limit != 0 {
		v.Limit = over.Limit
	}
	if over.Timeout != 0 {
		v.Timeout = over.Timeout
	}
	if len(over.Recipients) > 0 {
		v.Recipients = append([]string(nil), over.Recipients...)
	}
	if over.Verbose {
		v.Verbose = true
	}
	return v
}

func setString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}
