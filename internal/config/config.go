package config

import (
	"errors"
	"fmt"
	"strings"

	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// AppName is used for the env prefix, the config file name and the user
// config directory.
const AppName = "voiceclone"

type Config struct {
	LogLevel  string        `mapstructure:"log_level"`
	LogFormat string        `mapstructure:"log_format"`
	Paths     PathsConfig   `mapstructure:"paths"`
	Runtime   RuntimeConfig `mapstructure:"runtime"`
	Server    ServerConfig  `mapstructure:"server"`
	TTS       TTSConfig     `mapstructure:"tts"`
}

type PathsConfig struct {
	ModelDir       string `mapstructure:"model_dir"`
	VoicesManifest string `mapstructure:"voices_manifest"`
}

type RuntimeConfig struct {
	Device         string `mapstructure:"device"`
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTAPIVersion  int    `mapstructure:"ort_api_version"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	Workers         int    `mapstructure:"workers"`
	MaxTextChars    int    `mapstructure:"max_text_chars"`
	MaxUploadBytes  int64  `mapstructure:"max_upload_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

type TTSConfig struct {
	Backend       string `mapstructure:"backend"`
	CLIPath       string `mapstructure:"cli_path"`
	CLIVoice      string `mapstructure:"cli_voice"`
	RemoteURL     string `mapstructure:"remote_url"`
	RemoteTimeout int    `mapstructure:"remote_timeout"`
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
		LogLevel:  "info",
		LogFormat: "json",
		Paths: PathsConfig{
			ModelDir:       "models",
			VoicesManifest: "voices/manifest.json",
		},
		Runtime: RuntimeConfig{
			Device:         "auto",
			ORTLibraryPath: "",
			ORTAPIVersion:  23,
		},
		Server: ServerConfig{
			ListenAddr:      ":7860",
			Workers:         1,
			MaxTextChars:    4096,
			MaxUploadBytes:  20 << 20,
			RequestTimeout:  0,
			ShutdownTimeout: 30,
		},
		TTS: TTSConfig{
			Backend:       BackendONNX,
			CLIPath:       "",
			CLIVoice:      "",
			RemoteURL:     "http://127.0.0.1:8000",
			RemoteTimeout: 300,
		},
	}
}

// flagKeys maps command line flag names to their config keys.
var flagKeys = map[string]string{
	"log-level":          "log_level",
	"log-format":         "log_format",
	"model-dir":          "paths.model_dir",
	"voices-manifest":    "paths.voices_manifest",
	"device":             "runtime.device",
	"ort-lib":            "runtime.ort_library_path",
	"ort-api-version":    "runtime.ort_api_version",
	"listen-addr":        "server.listen_addr",
	"workers":            "server.workers",
	"max-text-chars":     "server.max_text_chars",
	"max-upload-bytes":   "server.max_upload_bytes",
	"request-timeout":    "server.request_timeout",
	"shutdown-timeout":   "server.shutdown_timeout",
	"backend":            "tts.backend",
	"tts-cli-path":       "tts.cli_path",
	"tts-cli-voice":      "tts.cli_voice",
	"tts-remote-url":     "tts.remote_url",
	"tts-remote-timeout": "tts.remote_timeout",
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
	fs.String("log-format", defaults.LogFormat, "Log format (json|text)")
	fs.String("model-dir", defaults.Paths.ModelDir, "Directory holding the model bundle")
	fs.String("voices-manifest", defaults.Paths.VoicesManifest, "Path to the reference voice manifest")
	fs.String("device", defaults.Runtime.Device, "Compute device (auto|cuda|cpu)")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.Int("ort-api-version", defaults.Runtime.ORTAPIVersion, "ONNX Runtime C API version")
	fs.String("listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("workers", defaults.Server.Workers, "Max concurrent generations")
	fs.Int("max-text-chars", defaults.Server.MaxTextChars, "Reject request text longer than this many characters")
	fs.Int64("max-upload-bytes", defaults.Server.MaxUploadBytes, "Max request body size in bytes")
	fs.Int("request-timeout", defaults.Server.RequestTimeout, "Per-request generation timeout in seconds (0 disables)")
	fs.Int("shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown drain period in seconds")
	fs.String("backend", defaults.TTS.Backend, "Synthesis backend (onnx|cli|remote)")
	fs.String("tts-cli-path", defaults.TTS.CLIPath, "Path to pocket-tts executable")
	fs.String("tts-cli-voice", defaults.TTS.CLIVoice, "pocket-tts voice used when no reference audio is given")
	fs.String("tts-remote-url", defaults.TTS.RemoteURL, "Base URL of the remote inference server")
	fs.Int("tts-remote-timeout", defaults.TTS.RemoteTimeout, "Remote inference HTTP timeout in seconds")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	if err := v.BindEnv("runtime.ort_library_path", "VOICECLONE_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName(AppName)
		v.AddConfigPath(".")
		for _, dir := range userConfigDirs() {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
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

func userConfigDirs() []string {
	dirs, err := gap.NewScope(gap.User, AppName).ConfigDirs()
	if err != nil {
		return nil
	}
	return dirs
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("log_format", c.LogFormat)
	v.SetDefault("paths.model_dir", c.Paths.ModelDir)
	v.SetDefault("paths.voices_manifest", c.Paths.VoicesManifest)
	v.SetDefault("runtime.device", c.Runtime.Device)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_api_version", c.Runtime.ORTAPIVersion)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.max_text_chars", c.Server.MaxTextChars)
	v.SetDefault("server.max_upload_bytes", c.Server.MaxUploadBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("tts.backend", c.TTS.Backend)
	v.SetDefault("tts.cli_path", c.TTS.CLIPath)
	v.SetDefault("tts.cli_voice", c.TTS.CLIVoice)
	v.SetDefault("tts.remote_url", c.TTS.RemoteURL)
	v.SetDefault("tts.remote_timeout", c.TTS.RemoteTimeout)
}
