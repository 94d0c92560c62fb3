package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/stoewer/go-strcase"

	"github.com/logkn/poemprobe/internal/completion"
)

// envAnnotation marks flags that may also be set from the environment. The
// value is the environment key, derived from the flag name.
const envAnnotation = "poemprobe_env"

// Config holds everything the probe and the mock server can be told.
// OpenAI credentials are deliberately absent unless overridden by flag: the
// SDK discovers OPENAI_API_KEY and OPENAI_BASE_URL on its own.
type Config struct {
	Model      string
	BaseURL    string
	APIKey     string
	LogLevel   string
	ListenAddr string
}

func Default() Config {
	return Config{
		Model:      completion.DefaultModel,
		LogLevel:   "INFO",
		ListenAddr: ":8080",
	}
}

// EnvKey returns the environment variable consulted for a flag name,
// e.g. chat-model -> CHAT_MODEL.
func EnvKey(flagName string) string {
	return strcase.UpperSnakeCase(flagName)
}

// LoadDotEnv loads the given files (".env" when none) into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// BindProbeFlags registers the flags used when invoking the completion.
func (c *Config) BindProbeFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.Model, "chat-model", c.Model, "Model identifier sent with the prompt")
	flags.StringVar(&c.BaseURL, "base-url", c.BaseURL, "Override the API base URL (defaults to OPENAI_BASE_URL or the hosted API)")
	flags.StringVar(&c.APIKey, "api-key", c.APIKey, "Override the API key (defaults to OPENAI_API_KEY)")
	bindEnv(flags, "chat-model")
}

// BindLogFlags registers the logging flags. Use on persistent flags.
func (c *Config) BindLogFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: DEBUG, INFO, WARN or ERROR")
	bindEnv(flags, "log-level")
}

// BindServerFlags registers the mock server flags.
func (c *Config) BindServerFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.ListenAddr, "listen-addr", c.ListenAddr, "Mock server listen address")
	bindEnv(flags, "listen-addr")
}

func bindEnv(flags *pflag.FlagSet, name string) {
	// SetAnnotation only fails for unknown flags, which would be a programming error.
	if err := flags.SetAnnotation(name, envAnnotation, []string{EnvKey(name)}); err != nil {
		panic(err)
	}
}

// ApplyEnv copies environment values into env-bound flags that were not set on
// the command line. lookup is os.LookupEnv outside of tests.
func ApplyEnv(flags *pflag.FlagSet, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		keys, ok := f.Annotations[envAnnotation]
		if !ok || len(keys) == 0 || f.Changed {
			return
		}
		v, ok := lookup(keys[0])
		if !ok || v == "" {
			return
		}
		if err := f.Value.Set(v); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", keys[0], err))
		}
	})
	return errors.Join(errs...)
}
