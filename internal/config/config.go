package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pmbr/domain/core"
	"pmbr/domain/session"
	"pmbr/domain/trial"
	"pmbr/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Session     session.Config
	Participant session.Participant
	Storage     StorageConfig
	Server      ServerConfig
	Logging     LoggingConfig
}

// StorageConfig holds where trial data goes
type StorageConfig struct {
	DataDir string
	Driver  string
	URL     string
}

// ServerConfig holds the HTTP listener settings. An empty MonitorPort disables the
// live monitor.
type ServerConfig struct {
	MonitorPort string
	APIPort     string
	GinMode     string
}

// LoggingConfig holds log settings
type LoggingConfig struct {
	Level string
	Dir   string
}

// Load reads .env, the optional YAML experiment file named by PMBR_CONFIG, the last
// participant entered, and PMBR_* environment overrides, in that order, then validates.
func Load() (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	config := &Config{}
	config.Storage = *loadStorageConfig()
	config.Server = *loadServerConfig()
	config.Logging = *loadLoggingConfig()

	sessionConfig := session.DefaultConfig()
	if path := os.Getenv("PMBR_CONFIG"); path != "" {
		fileConfig, err := LoadFile(path, sessionConfig)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load experiment file")
		}
		sessionConfig = fileConfig
	}

	participant := session.Participant{Session: 1, Run: 1}
	if last, mode, ok := LoadLastParams(LastParamsPath(config.Storage.DataDir)); ok {
		participant = last
		sessionConfig.Mode = mode
	}

	var err error
	if sessionConfig, err = applySessionEnv(sessionConfig); err != nil {
		return nil, errors.Wrap(err, "failed to load session configuration")
	}
	config.Session = sessionConfig

	if config.Participant, err = applyParticipantEnv(participant); err != nil {
		return nil, errors.Wrap(err, "failed to load participant")
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

// LoadFile overlays the YAML experiment file at path onto base. Keys absent from the
// file keep base's value.
func LoadFile(path string, base session.Config) (session.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, errors.WithCode(errors.CodeConfigInvalid,
			core.NewInvalidConfigError("experiment file", err.Error()))
	}
	return cfg, nil
}

func loadStorageConfig() *StorageConfig {
	dataDir := getEnvOrDefault("DATA_DIR", "./Data")
	driver := getEnvOrDefault("DB_DRIVER", "sqlite3")
	url := os.Getenv("DATABASE_URL")
	if url == "" && driver == "sqlite3" {
		url = filepath.Join(dataDir, "pmbr.db")
	}
	return &StorageConfig{DataDir: dataDir, Driver: driver, URL: url}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		MonitorPort: getEnvOrDefault("MONITOR_PORT", ""),
		APIPort:     getEnvOrDefault("API_PORT", "8080"),
		GinMode:     getEnvOrDefault("GIN_MODE", "debug"),
	}
}

func loadLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		Level: getEnvOrDefault("LOG_LEVEL", "INFO"),
		Dir:   getEnvOrDefault("LOG_DIR", ""),
	}
}

// applySessionEnv overrides cfg with every PMBR_* variable that is set. A malformed
// value is an InvalidConfig error, never silently replaced by the default.
func applySessionEnv(cfg session.Config) (session.Config, error) {
	e := &envReader{}

	if v, ok := os.LookupEnv("PMBR_SESSION_MODE"); ok {
		mode, err := trial.ParseSessionMode(v)
		if err != nil {
			return cfg, core.NewInvalidConfigError("PMBR_SESSION_MODE", err.Error())
		}
		cfg.Mode = mode
	}
	if v, ok := os.LookupEnv("PMBR_SEED"); ok {
		if strings.TrimSpace(v) == "" {
			cfg.Seed = nil
		} else {
			seed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return cfg, core.NewInvalidConfigError("PMBR_SEED", "must be an integer")
			}
			cfg.Seed = &seed
		}
	}
	if v, ok := os.LookupEnv("PMBR_DIRECTIONS"); ok {
		var dirs []trial.Direction
		for _, part := range strings.Split(v, ",") {
			d, err := trial.ParseDirection(part)
			if err != nil {
				return cfg, core.NewInvalidConfigError("PMBR_DIRECTIONS", err.Error())
			}
			dirs = append(dirs, d)
		}
		cfg.Directions = dirs
	}

	e.readInt("PMBR_TRIAL_COUNT", &cfg.TrialCount)
	e.readInt("PMBR_BLOCKS", &cfg.Blocks)
	e.readBool("PMBR_ADAPTIVE_TIMING", &cfg.AdaptiveTiming)
	e.readFloat("PMBR_K_DEADLINE_MULTIPLIER", &cfg.KDeadlineMultiplier)
	e.readFloat("PMBR_ADAPTIVE_GAIN", &cfg.AdaptiveGain)
	e.readInt64("PMBR_ADAPTIVE_REFERENCE_RT_MS", &cfg.AdaptiveReferenceRTMs)
	e.readInt("PMBR_ESTIMATE_WINDOW", &cfg.EstimateWindow)
	e.readInt("PMBR_ESTIMATE_MIN_SAMPLES", &cfg.EstimateMinSamples)
	e.readInt64("PMBR_BASE_DELAY_MS", &cfg.BaseDelayMs)
	e.readInt64("PMBR_DELAY_JITTER_MS", &cfg.DelayJitterMs)
	e.readInt64("PMBR_MIN_DELAY_MS", &cfg.MinDelayMs)
	e.readInt64("PMBR_MAX_DELAY_MS", &cfg.MaxDelayMs)
	e.readInt64("PMBR_MAX_MOVEMENT1_WAIT_MS", &cfg.MaxMovement1WaitMs)
	e.readInt64("PMBR_RESPONSE_WINDOW_MS", &cfg.ResponseWindowMs)
	e.readInt64("PMBR_MIN_RESPONSE_WINDOW_MS", &cfg.MinResponseWindowMs)
	e.readInt64("PMBR_LATE_GRACE_MS", &cfg.LateGraceMs)
	e.readInt64("PMBR_MAX_MOVEMENT_TIME_MS", &cfg.MaxMovementTimeMs)
	e.readInt64("PMBR_INTER_TRIAL_MIN_MS", &cfg.InterTrialMinMs)
	e.readInt64("PMBR_INTER_TRIAL_MAX_MS", &cfg.InterTrialMaxMs)
	e.readFloat("PMBR_ONSET_THRESHOLD", &cfg.OnsetThreshold)
	e.readFloat("PMBR_FULL_PUSH_THRESHOLD", &cfg.FullPushThreshold)
	e.readInt("PMBR_FRAME_RATE_HZ", &cfg.FrameRateHz)
	e.readInt("PMBR_RAMP_UP_SECONDS", &cfg.RampUpSeconds)
	e.readInt("PMBR_BREAK_SECONDS", &cfg.BreakSeconds)

	return cfg, e.err
}

func applyParticipantEnv(p session.Participant) (session.Participant, error) {
	e := &envReader{}
	id := int(p.ID)
	e.readInt("PMBR_PARTICIPANT_ID", &id)
	e.readInt("PMBR_SESSION", &p.Session)
	e.readInt("PMBR_RUN", &p.Run)
	p.ID = core.ParticipantID(id)
	return p, e.err
}

func validateConfig(config *Config) error {
	if err := config.Session.Validate(); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	switch config.Storage.Driver {
	case "sqlite3", "postgres":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("DB_DRIVER %q is not supported", config.Storage.Driver))
	}
	if config.Storage.URL == "" {
		return errors.ConfigInvalid("DATABASE_URL is required for postgres")
	}
	if config.Participant.ID < 0 || config.Participant.Session < 1 || config.Participant.Run < 1 {
		return errors.WithCode(errors.CodeConfigInvalid,
			core.NewInvalidConfigError("participant", "id must be non-negative, session and run at least 1"))
	}
	return nil
}

// envReader parses optional variables, keeping the first malformed one as err
type envReader struct {
	err error
}

func (e *envReader) lookup(key string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) fail(key, kind string) {
	e.err = core.NewInvalidConfigError(key, "must be "+kind)
}

func (e *envReader) readInt(key string, dst *int) {
	if v, ok := e.lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, "an integer")
			return
		}
		*dst = n
	}
}

func (e *envReader) readInt64(key string, dst *int64) {
	if v, ok := e.lookup(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(key, "an integer")
			return
		}
		*dst = n
	}
}

func (e *envReader) readFloat(key string, dst *float64) {
	if v, ok := e.lookup(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, "a number")
			return
		}
		*dst = f
	}
}

func (e *envReader) readBool(key string, dst *bool) {
	if v, ok := e.lookup(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, "true or false")
			return
		}
		*dst = b
	}
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
