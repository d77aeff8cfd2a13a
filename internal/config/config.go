// ABOUTME: Layered CLI configuration loaded with viper
// ABOUTME: Defaults, an optional YAML file, YUME_ environment variables and flag overrides
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/Desdaemon/yume-jukebox/internal/logger"
	"github.com/Desdaemon/yume-jukebox/pkg/audio/output"
	"github.com/Desdaemon/yume-jukebox/pkg/playback"
	"github.com/Desdaemon/yume-jukebox/pkg/render"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. YUME_PITCH.
const EnvPrefix = "YUME"

// Config holds the player settings.
type Config struct {
	Backend      string        `mapstructure:"backend"`
	Format       string        `mapstructure:"format"`
	BufferFrames int           `mapstructure:"buffer_frames"`
	Performance  string        `mapstructure:"performance"`
	Sharing      string        `mapstructure:"sharing"`
	Pitch        float64       `mapstructure:"pitch"`
	PitchStep    float64       `mapstructure:"pitch_step"`
	StartPaused  bool          `mapstructure:"start_paused"`
	NoTUI        bool          `mapstructure:"no_tui"`
	Log          logger.Config `mapstructure:"log"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", output.DefaultBackend)
	v.SetDefault("format", output.FormatInt16.String())
	v.SetDefault("buffer_frames", render.DefaultScratchFrames)
	v.SetDefault("performance", output.PerformanceLowLatency.String())
	v.SetDefault("sharing", output.SharingShared.String())
	v.SetDefault("pitch", 1.0)
	v.SetDefault("pitch_step", 0.05)
	v.SetDefault("start_paused", false)
	v.SetDefault("no_tui", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.outputs", []string{"stdout"})
}

// Load layers defaults, the config file, the environment and overrides,
// in increasing priority. An empty path searches for config.yaml in ".",
// "./config" and "$HOME/.config/yume-jukebox"; a missing file is only an
// error when path is set. Override keys use the config key names.
func Load(path string, overrides map[string]any) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.config/yume-jukebox")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	for key, val := range overrides {
		v.Set(key, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field that has a restricted range.
func (c Config) Validate() error {
	if _, err := output.ParseFormat(c.Format); err != nil {
		return err
	}
	if _, err := output.ParsePerformance(c.Performance); err != nil {
		return err
	}
	if _, err := output.ParseSharing(c.Sharing); err != nil {
		return err
	}
	if c.BufferFrames <= 0 {
		return fmt.Errorf("buffer_frames must be positive, got %d", c.BufferFrames)
	}
	if math.IsNaN(c.Pitch) || math.IsInf(c.Pitch, 0) || c.Pitch <= 0 {
		return fmt.Errorf("pitch must be positive, got %v", c.Pitch)
	}
	if c.PitchStep <= 0 {
		return fmt.Errorf("pitch_step must be positive, got %v", c.PitchStep)
	}
	return nil
}

// PlaybackOptions converts the config into controller options.
func (c Config) PlaybackOptions(log *slog.Logger) (playback.Options, error) {
	format, err := output.ParseFormat(c.Format)
	if err != nil {
		return playback.Options{}, err
	}
	perf, err := output.ParsePerformance(c.Performance)
	if err != nil {
		return playback.Options{}, err
	}
	sharing, err := output.ParseSharing(c.Sharing)
	if err != nil {
		return playback.Options{}, err
	}
	return playback.Options{
		BackendName:          c.Backend,
		Format:               format,
		BufferCapacityFrames: c.BufferFrames,
		Performance:          perf,
		Sharing:              sharing,
		StartPaused:          c.StartPaused,
		Logger:               log,
	}, nil
}
