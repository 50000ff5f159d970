package control

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dreamware/attest/internal/cluster"
	"github.com/dreamware/attest/internal/workload"
)

// Config is the run configuration surface: cluster shape, workload shape,
// fault cadence, and artifact locations.
type Config struct {
	Nodes          []cluster.Node `yaml:"nodes"`
	KeyCount       int            `yaml:"key_count"`
	WorkersPerKey  int            `yaml:"workers_per_key"`
	OpsPerKey      int            `yaml:"ops_per_key"`
	MeanGap        time.Duration  `yaml:"mean_gap"`
	CycleWait      time.Duration  `yaml:"cycle_wait"`
	RunTime        time.Duration  `yaml:"run_time"`
	CheckBudget    time.Duration  `yaml:"check_budget"`
	RequestTimeout time.Duration  `yaml:"request_timeout"`
	HistoryFile    string         `yaml:"history_file"`
	ReportDir      string         `yaml:"report_dir"`
	Seed           int64          `yaml:"seed"`
}

// DefaultConfig returns the conventional test shape: ten keys probed by
// five processes each, a hundred operations per key, partitions every
// five seconds, all bounded by a one-minute run.
func DefaultConfig() Config {
	return Config{
		KeyCount:       10,
		WorkersPerKey:  5,
		OpsPerKey:      workload.DefaultOpsPerKey,
		MeanGap:        workload.DefaultMeanGap,
		CycleWait:      5 * time.Second,
		RunTime:        time.Minute,
		CheckBudget:    10 * time.Second,
		RequestTimeout: 5 * time.Second,
		HistoryFile:    "history.jsonl",
		ReportDir:      "report",
	}
}

// duration decodes YAML durations written either as strings ("20ms",
// "1m30s") or as bare nanosecond integers.
type duration time.Duration

func (d *duration) UnmarshalYAML(n *yaml.Node) error {
	if v, err := time.ParseDuration(n.Value); err == nil {
		*d = duration(v)
		return nil
	}
	if i, err := strconv.ParseInt(n.Value, 10, 64); err == nil {
		*d = duration(i)
		return nil
	}
	return fmt.Errorf("config: bad duration %q", n.Value)
}

// UnmarshalYAML merges a YAML document over the receiver: fields the
// document is silent on keep their current (usually default) values.
func (c *Config) UnmarshalYAML(n *yaml.Node) error {
	var raw struct {
		Nodes          []cluster.Node `yaml:"nodes"`
		KeyCount       *int           `yaml:"key_count"`
		WorkersPerKey  *int           `yaml:"workers_per_key"`
		OpsPerKey      *int           `yaml:"ops_per_key"`
		MeanGap        *duration      `yaml:"mean_gap"`
		CycleWait      *duration      `yaml:"cycle_wait"`
		RunTime        *duration      `yaml:"run_time"`
		CheckBudget    *duration      `yaml:"check_budget"`
		RequestTimeout *duration      `yaml:"request_timeout"`
		HistoryFile    *string        `yaml:"history_file"`
		ReportDir      *string        `yaml:"report_dir"`
		Seed           *int64         `yaml:"seed"`
	}
	if err := n.Decode(&raw); err != nil {
		return err
	}
	if raw.Nodes != nil {
		c.Nodes = raw.Nodes
	}
	if raw.KeyCount != nil {
		c.KeyCount = *raw.KeyCount
	}
	if raw.WorkersPerKey != nil {
		c.WorkersPerKey = *raw.WorkersPerKey
	}
	if raw.OpsPerKey != nil {
		c.OpsPerKey = *raw.OpsPerKey
	}
	if raw.MeanGap != nil {
		c.MeanGap = time.Duration(*raw.MeanGap)
	}
	if raw.CycleWait != nil {
		c.CycleWait = time.Duration(*raw.CycleWait)
	}
	if raw.RunTime != nil {
		c.RunTime = time.Duration(*raw.RunTime)
	}
	if raw.CheckBudget != nil {
		c.CheckBudget = time.Duration(*raw.CheckBudget)
	}
	if raw.RequestTimeout != nil {
		c.RequestTimeout = time.Duration(*raw.RequestTimeout)
	}
	if raw.HistoryFile != nil {
		c.HistoryFile = *raw.HistoryFile
	}
	if raw.ReportDir != nil {
		c.ReportDir = *raw.ReportDir
	}
	if raw.Seed != nil {
		c.Seed = *raw.Seed
	}
	return nil
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the config is runnable.
func (c Config) Validate() error {
	if len(c.Nodes) == 0 {
		return errors.New("config: at least one node required")
	}
	if c.KeyCount <= 0 {
		return errors.New("config: key_count must be positive")
	}
	if c.WorkersPerKey <= 0 {
		return errors.New("config: workers_per_key must be positive")
	}
	if c.OpsPerKey <= 0 {
		return errors.New("config: ops_per_key must be positive")
	}
	if c.RunTime <= 0 {
		return errors.New("config: run_time must be positive")
	}
	return nil
}
