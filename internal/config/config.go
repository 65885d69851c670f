package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ggonzalez94/dotsign/internal/logging"
)

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"

	DefaultMnemonicEnv = "DOTSIGN_MNEMONIC"
	DefaultRedisKey    = "dotsign:state"
)

type GlobalFlags struct {
	ConfigPath     string
	JSON           bool
	Plain          bool
	Select         string
	ResultsOnly    bool
	EnableCommands string
	Timeout        string
	Retries        int
	LogLevel       string
	StateBackend   string
	RPCURL         string
	MetricsFile    string
}

// ChainConfig adds a chain to the built-in registry or overrides one with
// the same genesis hash.
type ChainConfig struct {
	Name          string   `yaml:"name"`
	Slug          string   `yaml:"slug"`
	GenesisHash   string   `yaml:"genesis_hash"`
	SS58Format    uint16   `yaml:"ss58_format"`
	TokenSymbol   string   `yaml:"token_symbol"`
	TokenDecimals uint8    `yaml:"token_decimals"`
	Endpoints     []string `yaml:"endpoints"`
}

type Settings struct {
	OutputMode     string
	SelectFields   []string
	ResultsOnly    bool
	EnableCommands []string
	Timeout        time.Duration
	Retries        int
	LogLevel       string
	LogPath        string
	StateBackend   string
	StatePath      string
	StateLockPath  string
	RedisAddr      string
	RedisKey       string
	MetricsFile    string
	DenyOrigins    []string
	Chains         []ChainConfig
	RPCURL         string
	MnemonicEnv    string
	MnemonicFile   string
	RequireTTY     bool
}

type fileConfig struct {
	Output  string `yaml:"output"`
	Timeout string `yaml:"timeout"`
	Retries *int   `yaml:"retries"`
	Log     struct {
		Level string `yaml:"level"`
		Path  string `yaml:"path"`
	} `yaml:"log"`
	State struct {
		Backend   string `yaml:"backend"`
		Path      string `yaml:"path"`
		LockPath  string `yaml:"lock_path"`
		RedisAddr string `yaml:"redis_addr"`
		RedisKey  string `yaml:"redis_key"`
	} `yaml:"state"`
	Metrics struct {
		File string `yaml:"file"`
	} `yaml:"metrics"`
	Policy struct {
		DenyOrigins []string `yaml:"deny_origins"`
	} `yaml:"policy"`
	Prompt struct {
		RequireTTY *bool `yaml:"require_tty"`
	} `yaml:"prompt"`
	RPCURL string        `yaml:"rpc_url"`
	Chains []ChainConfig `yaml:"chains"`
	Keys   struct {
		MnemonicEnv  string `yaml:"mnemonic_env"`
		MnemonicFile string `yaml:"mnemonic_file"`
	} `yaml:"keys"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.RedisKey == "" {
		settings.RedisKey = DefaultRedisKey
	}

	return settings, validate(settings)
}

func defaultSettings() (Settings, error) {
	statePath, lockPath, err := defaultStatePaths()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:    "json",
		Timeout:       10 * time.Second,
		Retries:       2,
		LogLevel:      logging.DefaultLevel,
		StateBackend:  BackendSQLite,
		StatePath:     statePath,
		StateLockPath: lockPath,
		RedisKey:      DefaultRedisKey,
		MnemonicEnv:   DefaultMnemonicEnv,
		RequireTTY:    true,
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "dotsign", "config.yaml"), nil
}

func defaultStatePaths() (string, string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	dir := filepath.Join(base, "dotsign")
	return filepath.Join(dir, "state.db"), filepath.Join(dir, "state.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.Log.Level != "" {
		settings.LogLevel = strings.ToLower(cfg.Log.Level)
	}
	if cfg.Log.Path != "" {
		settings.LogPath = cfg.Log.Path
	}
	if cfg.State.Backend != "" {
		settings.StateBackend = strings.ToLower(cfg.State.Backend)
	}
	if cfg.State.Path != "" {
		settings.StatePath = cfg.State.Path
	}
	if cfg.State.LockPath != "" {
		settings.StateLockPath = cfg.State.LockPath
	}
	if cfg.State.RedisAddr != "" {
		settings.RedisAddr = cfg.State.RedisAddr
	}
	if cfg.State.RedisKey != "" {
		settings.RedisKey = cfg.State.RedisKey
	}
	if cfg.Metrics.File != "" {
		settings.MetricsFile = cfg.Metrics.File
	}
	if len(cfg.Policy.DenyOrigins) > 0 {
		settings.DenyOrigins = cfg.Policy.DenyOrigins
	}
	if cfg.Prompt.RequireTTY != nil {
		settings.RequireTTY = *cfg.Prompt.RequireTTY
	}
	if cfg.RPCURL != "" {
		settings.RPCURL = cfg.RPCURL
	}
	if len(cfg.Chains) > 0 {
		settings.Chains = cfg.Chains
	}
	if cfg.Keys.MnemonicEnv != "" {
		settings.MnemonicEnv = cfg.Keys.MnemonicEnv
	}
	if cfg.Keys.MnemonicFile != "" {
		settings.MnemonicFile = cfg.Keys.MnemonicFile
	}

	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("DOTSIGN_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("DOTSIGN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("DOTSIGN_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("DOTSIGN_LOG_LEVEL"); v != "" {
		settings.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("DOTSIGN_LOG_PATH"); v != "" {
		settings.LogPath = v
	}
	if v := os.Getenv("DOTSIGN_STATE_BACKEND"); v != "" {
		settings.StateBackend = strings.ToLower(v)
	}
	if v := os.Getenv("DOTSIGN_STATE_PATH"); v != "" {
		settings.StatePath = v
	}
	if v := os.Getenv("DOTSIGN_STATE_LOCK_PATH"); v != "" {
		settings.StateLockPath = v
	}
	if v := os.Getenv("DOTSIGN_REDIS_ADDR"); v != "" {
		settings.RedisAddr = v
	}
	if v := os.Getenv("DOTSIGN_REDIS_KEY"); v != "" {
		settings.RedisKey = v
	}
	if v := os.Getenv("DOTSIGN_METRICS_FILE"); v != "" {
		settings.MetricsFile = v
	}
	if v := os.Getenv("DOTSIGN_DENY_ORIGINS"); v != "" {
		settings.DenyOrigins = splitList(v)
	}
	if v := os.Getenv("DOTSIGN_RPC_URL"); v != "" {
		settings.RPCURL = v
	}
	if v := os.Getenv("DOTSIGN_MNEMONIC_FILE"); v != "" {
		settings.MnemonicFile = v
	}
	if v := os.Getenv("DOTSIGN_REQUIRE_TTY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.RequireTTY = b
		}
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if strings.TrimSpace(flags.Select) != "" {
		settings.SelectFields = splitList(flags.Select)
	}
	settings.ResultsOnly = flags.ResultsOnly

	if strings.TrimSpace(flags.EnableCommands) != "" {
		settings.EnableCommands = splitList(flags.EnableCommands)
	}

	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if flags.LogLevel != "" {
		settings.LogLevel = strings.ToLower(flags.LogLevel)
	}
	if flags.StateBackend != "" {
		settings.StateBackend = strings.ToLower(flags.StateBackend)
	}
	if flags.RPCURL != "" {
		settings.RPCURL = flags.RPCURL
	}
	if flags.MetricsFile != "" {
		settings.MetricsFile = flags.MetricsFile
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}

	return nil
}

func validate(settings Settings) error {
	if _, err := logging.ParseLevel(settings.LogLevel); err != nil {
		return err
	}
	switch settings.StateBackend {
	case BackendSQLite:
		if strings.TrimSpace(settings.StatePath) == "" {
			return fmt.Errorf("state path is required for the sqlite backend")
		}
	case BackendRedis:
		if strings.TrimSpace(settings.RedisAddr) == "" {
			return fmt.Errorf("redis address is required for the redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("state backend must be sqlite, redis or memory")
	}
	for _, c := range settings.Chains {
		if strings.TrimSpace(c.GenesisHash) == "" {
			return fmt.Errorf("chain %q: genesis_hash is required", c.Name)
		}
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
