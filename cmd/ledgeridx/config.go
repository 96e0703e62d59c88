package main

import (
	"fmt"
	"os"

	"github.com/andreyvit/ledgeridx"
	flags "github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

// options defines the command-line flags. Flags override the config file.
type options struct {
	Config      string `short:"c" long:"config" description:"YAML config file"`
	Snapshot    string `short:"s" long:"snapshot" description:"Snapshot file to load accounts from"`
	Journal     string `short:"j" long:"journal" description:"Directory of the notification journal to replay"`
	Store       string `long:"store" description:"Metaplex store address"`
	ArweaveOnly bool   `long:"arweave-only" description:"List only metadata hosted on arweave"`
	Dump        bool   `long:"dump" description:"Print every table instead of the admissible metadata"`
	MetricsAddr string `long:"metrics-addr" description:"Serve Prometheus metrics on this address and wait for a signal"`
	Verbose     bool   `short:"v" long:"verbose" description:"Log every row write"`
}

type fileConfig struct {
	Programs *ledgeridx.ProgramIDs `yaml:"programs"`
	Store    string                `yaml:"store"`
	Snapshot string                `yaml:"snapshot"`
	Journal  string                `yaml:"journal"`
	Arweave  bool                  `yaml:"arweave_only"`
}

type config struct {
	options
	Programs ledgeridx.ProgramIDs
	StoreKey ledgeridx.Pubkey
}

func loadConfig(args []string) (*config, error) {
	var opt options
	parser := flags.NewParser(&opt, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	cfg := &config{options: opt, Programs: ledgeridx.DefaultProgramIDs()}
	if opt.Config != "" {
		fc, err := readFileConfig(opt.Config)
		if err != nil {
			return nil, err
		}
		if fc.Programs != nil {
			cfg.Programs = *fc.Programs
		}
		if cfg.Store == "" {
			cfg.Store = fc.Store
		}
		if cfg.Snapshot == "" {
			cfg.Snapshot = fc.Snapshot
		}
		if cfg.Journal == "" {
			cfg.Journal = fc.Journal
		}
		cfg.ArweaveOnly = cfg.ArweaveOnly || fc.Arweave
	}

	if cfg.Store != "" {
		key, err := ledgeridx.ParsePubkey(cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("invalid store address: %w", err)
		}
		cfg.StoreKey = key
	}
	if cfg.Snapshot == "" {
		return nil, fmt.Errorf("no snapshot given")
	}
	return cfg, nil
}

func readFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &fc, nil
}
