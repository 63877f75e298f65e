// Package config loads the supervisor's TOML configuration through viper.
package config

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/taskmaster/internal/env"
	"github.com/loykin/taskmaster/internal/logger"
	"github.com/loykin/taskmaster/internal/program"
)

// Defaults applied when a key is absent.
const (
	DefaultMonitorInterval = 500 * time.Millisecond
	DefaultShutdownTimeout = 10 * time.Second
	DefaultStartRetries    = 3
	DefaultStartSecs       = 1.0
	DefaultStopWaitSecs    = 10.0
	DefaultStopSignal      = "TERM"
)

// Error wraps any failure to read, decode or validate a configuration file.
type Error struct {
	Path    string
	Program string // empty for file-level problems
	Err     error
}

func (e *Error) Error() string {
	if e.Program != "" {
		return fmt.Sprintf("config %s: program %q: %v", e.Path, e.Program, e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// fileConfig represents the top-level TOML structure.
type fileConfig struct {
	Global   globalFile             `mapstructure:"global"`
	Programs map[string]programFile `mapstructure:"programs"`
}

type globalFile struct {
	LogFile         string        `mapstructure:"logfile"`
	LogLevel        string        `mapstructure:"log_level"`
	MonitorInterval time.Duration `mapstructure:"monitor_interval"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	LockFile        string        `mapstructure:"lock_file"`
	WatchConfig     bool          `mapstructure:"watch_config"`
	Env             []string      `mapstructure:"env"`
	EnvFiles        []string      `mapstructure:"env_files"`
	UseOSEnv        bool          `mapstructure:"use_os_env"`
	History         []string      `mapstructure:"history"`
	APIListen       string        `mapstructure:"api_listen"`
	MetricsListen   string        `mapstructure:"metrics_listen"`
	logger.Rotation `mapstructure:",squash"`
}

type programFile struct {
	Command      string   `mapstructure:"command"`
	Args         []string `mapstructure:"args"`
	AutoStart    *bool    `mapstructure:"autostart"`
	AutoRestart  string   `mapstructure:"autorestart"`
	ExitCodes    []int    `mapstructure:"exitcodes"`
	StartRetries *int     `mapstructure:"startretries"`
	StartSecs    *float64 `mapstructure:"startsecs"`
	StopSignal   string   `mapstructure:"stopsignal"`
	StopWaitSecs *float64 `mapstructure:"stopwaitsecs"`
	WorkDir      string   `mapstructure:"workingdir"`
	Stdout       string   `mapstructure:"stdout"`
	Stderr       string   `mapstructure:"stderr"`
	Env          []string `mapstructure:"env"`
	logger.Rotation `mapstructure:",squash"`
}

// Global holds supervisor-wide settings.
type Global struct {
	LogFile         string
	LogLevel        string
	Log             logger.Rotation
	MonitorInterval time.Duration
	ShutdownTimeout time.Duration
	LockFile        string
	WatchConfig     bool
	Env             []string
	EnvFiles        []string
	UseOSEnv        bool
	History         []string // history sink DSNs
	APIListen       string
	MetricsListen   string
}

// Config is a fully validated configuration.
type Config struct {
	Path     string
	Global   Global
	Programs map[string]program.Config
}

// Names returns the program names in display order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Programs))
	for n := range c.Programs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Environment composes the global environment layer: the supervisor's own
// environment when use_os_env is set, then env_files in order, then env.
func (g Global) Environment() (*env.Env, error) {
	e := env.New()
	if g.UseOSEnv {
		e = env.FromOS()
	}
	for _, p := range g.EnvFiles {
		m, err := env.ParseFile(p)
		if err != nil {
			return nil, fmt.Errorf("env file: %w", err)
		}
		e = e.WithMap(m)
	}
	return e.WithPairs(g.Env), nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetDefault("global.log_level", "info")
	v.SetDefault("global.monitor_interval", DefaultMonitorInterval)
	v.SetDefault("global.shutdown_timeout", DefaultShutdownTimeout)
	v.SetDefault("global.use_os_env", true)
	return v
}

// Load reads, decodes and validates the file at path. Program names are
// case-insensitive and normalized to lower case. Every failure is returned
// as *Error.
func Load(path string) (*Config, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	g, err := fc.Global.resolve()
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	if _, err := g.Environment(); err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	cfg := &Config{Path: path, Global: g, Programs: make(map[string]program.Config, len(fc.Programs))}
	for name, pf := range fc.Programs {
		pc, err := pf.resolve(g.Log)
		if err != nil {
			return nil, &Error{Path: path, Program: name, Err: err}
		}
		cfg.Programs[name] = pc
	}
	return cfg, nil
}

func (gf globalFile) resolve() (Global, error) {
	if _, err := logger.ParseLevel(gf.LogLevel); err != nil {
		return Global{}, err
	}
	if gf.MonitorInterval <= 0 {
		return Global{}, errors.New("monitor_interval must be positive")
	}
	if gf.ShutdownTimeout <= 0 {
		return Global{}, errors.New("shutdown_timeout must be positive")
	}
	for _, kv := range gf.Env {
		if !strings.Contains(kv, "=") {
			return Global{}, fmt.Errorf("env entry %q is not KEY=VALUE", kv)
		}
	}
	return Global{
		LogFile:         gf.LogFile,
		LogLevel:        gf.LogLevel,
		Log:             gf.Rotation,
		MonitorInterval: gf.MonitorInterval,
		ShutdownTimeout: gf.ShutdownTimeout,
		LockFile:        gf.LockFile,
		WatchConfig:     gf.WatchConfig,
		Env:             gf.Env,
		EnvFiles:        gf.EnvFiles,
		UseOSEnv:        gf.UseOSEnv,
		History:         gf.History,
		APIListen:       gf.APIListen,
		MetricsListen:   gf.MetricsListen,
	}, nil
}

func (pf programFile) resolve(defaults logger.Rotation) (program.Config, error) {
	policy, err := program.ParseRestartPolicy(pf.AutoRestart)
	if err != nil {
		return program.Config{}, err
	}
	sigName := pf.StopSignal
	if sigName == "" {
		sigName = DefaultStopSignal
	}
	sig, err := program.ParseSignal(sigName)
	if err != nil {
		return program.Config{}, fmt.Errorf("stopsignal: %w", err)
	}
	startSecs, err := seconds("startsecs", pf.StartSecs, DefaultStartSecs)
	if err != nil {
		return program.Config{}, err
	}
	stopWait, err := seconds("stopwaitsecs", pf.StopWaitSecs, DefaultStopWaitSecs)
	if err != nil {
		return program.Config{}, err
	}

	pc := program.Config{
		Command:     pf.Command,
		Args:        pf.Args,
		AutoStart:   pf.AutoStart == nil || *pf.AutoStart,
		AutoRestart: policy,
		ExitCodes:   pf.ExitCodes,
		MaxRestarts: DefaultStartRetries,
		StartSecs:   startSecs,
		StopSignal:  sig,
		StopWait:    stopWait,
		WorkDir:     pf.WorkDir,
		Stdout:      pf.Stdout,
		Stderr:      pf.Stderr,
		Env:         pf.Env,
		Log:         mergeRotation(defaults, pf.Rotation),
	}
	if len(pc.ExitCodes) == 0 {
		pc.ExitCodes = []int{0}
	}
	if pf.StartRetries != nil {
		pc.MaxRestarts = *pf.StartRetries
	}
	return pc, pc.Validate()
}

func seconds(key string, v *float64, def float64) (time.Duration, error) {
	s := def
	if v != nil {
		s = *v
	}
	if s < 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return 0, fmt.Errorf("%s must be a non-negative number", key)
	}
	return time.Duration(s * float64(time.Second)), nil
}

func mergeRotation(base, over logger.Rotation) logger.Rotation {
	out := base
	if over.MaxSizeMB != 0 {
		out.MaxSizeMB = over.MaxSizeMB
	}
	if over.MaxBackups != 0 {
		out.MaxBackups = over.MaxBackups
	}
	if over.MaxAgeDays != 0 {
		out.MaxAgeDays = over.MaxAgeDays
	}
	if over.Compress {
		out.Compress = true
	}
	return out
}
