package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"worklog/internal/config"
	"worklog/internal/journal/jsonfile"
)

// ctlConfig is the optional YAML config file, flags override it.
type ctlConfig struct {
	DataFile  string `yaml:"data_file"`
	UTCOffset string `yaml:"utc_offset"`
}

type ctlOptions struct {
	configPath string
	dataFile   string
	utcOffset  string
}

func newRootCmd() *cobra.Command {
	opts := &ctlOptions{}

	cmd := &cobra.Command{
		Use:           "worklogctl",
		Short:         "Manage the daily work log from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $HOME/.worklogctl.yaml)")
	cmd.PersistentFlags().StringVar(&opts.dataFile, "data", "", "work log JSON file (default ./data/work_logs.json)")
	cmd.PersistentFlags().StringVar(&opts.utcOffset, "offset", "", "fixed UTC offset of the tracked day, e.g. +05:30")

	cmd.AddCommand(
		newLogCmd(opts),
		newHolidayCmd(opts),
		newShowCmd(opts),
		newSummaryCmd(opts),
		newNowCmd(opts),
	)

	return cmd
}

// resolve merges flags over the YAML config over defaults.
func (o *ctlOptions) resolve() (ctlConfig, error) {
	cfg := ctlConfig{
		DataFile:  "./data/work_logs.json",
		UTCOffset: "+05:30",
	}

	path := o.configPath
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".worklogctl.yaml")
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return ctlConfig{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case o.configPath != "":
			// An explicitly requested config file must exist.
			return ctlConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	if o.dataFile != "" {
		cfg.DataFile = o.dataFile
	}
	if o.utcOffset != "" {
		cfg.UTCOffset = o.utcOffset
	}
	return cfg, nil
}

func (o *ctlOptions) openStore() (*jsonfile.Store, ctlConfig, error) {
	cfg, err := o.resolve()
	if err != nil {
		return nil, ctlConfig{}, err
	}
	store, err := jsonfile.Open(cfg.DataFile)
	if err != nil {
		return nil, ctlConfig{}, fmt.Errorf("open work log store: %w", err)
	}
	return store, cfg, nil
}

func (o *ctlOptions) location() (*time.Location, error) {
	cfg, err := o.resolve()
	if err != nil {
		return nil, err
	}
	secs, err := config.ParseUTCOffset(cfg.UTCOffset)
	if err != nil {
		return nil, err
	}
	return time.FixedZone("UTC"+cfg.UTCOffset, secs), nil
}
