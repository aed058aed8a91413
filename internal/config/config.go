package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig `mapstructure:"server"`
	Engine   EngineConfig `mapstructure:"engine"`
	TTS      TTSConfig    `mapstructure:"tts"`
	LogLevel string       `mapstructure:"log_level"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	Workers         int    `mapstructure:"workers"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

type EngineConfig struct {
	Backend        string `mapstructure:"backend"`
	Device         string `mapstructure:"device"`
	CLIPath        string `mapstructure:"cli_path"`
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type TTSConfig struct {
	DefaultLanguage string `mapstructure:"default_language"`
	MaxTextChars    int    `mapstructure:"max_text_chars"`
	Serialize       bool   `mapstructure:"serialize"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:      ":8000",
			Workers:         1,
			RequestTimeout:  120,
			ShutdownTimeout: 30,
		},
		Engine: EngineConfig{
			Backend:        BackendCLI,
			Device:         DeviceAuto,
			CLIPath:        "",
			URL:            "http://127.0.0.1:8001",
			TimeoutSeconds: 300,
		},
		TTS: TTSConfig{
			DefaultLanguage: "en",
			MaxTextChars:    1000,
			Serialize:       true,
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("server-workers", defaults.Server.Workers, "Max concurrent synthesis requests")
	fs.Int("server-request-timeout", defaults.Server.RequestTimeout, "Per-request synthesis deadline in seconds")
	fs.Int("server-shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown drain period in seconds")
	fs.String("engine-backend", defaults.Engine.Backend, "Model engine backend (cli|http)")
	fs.String("engine-device", defaults.Engine.Device, "Device hint passed to the model (auto|mps|cuda|cpu)")
	fs.String("engine-cli-path", defaults.Engine.CLIPath, "Path to the chatterbox CLI executable")
	fs.String("engine-url", defaults.Engine.URL, "Base URL of the chatterbox model server")
	fs.Int("engine-timeout-seconds", defaults.Engine.TimeoutSeconds, "Engine call timeout in seconds")
	fs.String("tts-default-language", defaults.TTS.DefaultLanguage, "Language mapped to the English model")
	fs.Int("tts-max-text-chars", defaults.TTS.MaxTextChars, "Maximum synthesis text length in characters")
	fs.Bool("tts-serialize", defaults.TTS.Serialize, "Serialize generation calls per model variant")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("CHATTERTTS")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("chattertts")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("engine.backend", c.Engine.Backend)
	v.SetDefault("engine.device", c.Engine.Device)
	v.SetDefault("engine.cli_path", c.Engine.CLIPath)
	v.SetDefault("engine.url", c.Engine.URL)
	v.SetDefault("engine.timeout_seconds", c.Engine.TimeoutSeconds)
	v.SetDefault("tts.default_language", c.TTS.DefaultLanguage)
	v.SetDefault("tts.max_text_chars", c.TTS.MaxTextChars)
	v.SetDefault("tts.serialize", c.TTS.Serialize)
	v.SetDefault("log_level", c.LogLevel)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("server.listen_addr", "server-listen-addr")
	v.RegisterAlias("server.workers", "server-workers")
	v.RegisterAlias("server.request_timeout", "server-request-timeout")
	v.RegisterAlias("server.shutdown_timeout", "server-shutdown-timeout")
	v.RegisterAlias("engine.backend", "engine-backend")
	v.RegisterAlias("engine.device", "engine-device")
	v.RegisterAlias("engine.cli_path", "engine-cli-path")
	v.RegisterAlias("engine.url", "engine-url")
	v.RegisterAlias("engine.timeout_seconds", "engine-timeout-seconds")
	v.RegisterAlias("tts.default_language", "tts-default-language")
	v.RegisterAlias("tts.max_text_chars", "tts-max-text-chars")
	v.RegisterAlias("tts.serialize", "tts-serialize")
	v.RegisterAlias("log_level", "log-level")
}
