// Command jam is a minimal, illustrative entry point for the JAM
// state-transition function: it loads a genesis key-value dump and a
// sequence of blocks from disk, applies each block through internal/stf,
// logs each resulting state root, and prints the final one. It does not speak
// any wire protocol — real block ingestion arrives over the network and
// stays out of scope here, same as the fuzzer target's Unix-socket
// protocol (see DESIGN.md).
//
// Usage:
//
//	jam --genesis genesis.json --blocks blocks.json [--profile tiny|full] [--verbosity 0-5]
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/bloppan/vinwolf-sub001/internal/accumulation"
	"github.com/bloppan/vinwolf-sub001/internal/header"
	"github.com/bloppan/vinwolf-sub001/internal/jamstate"
	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
	"github.com/bloppan/vinwolf-sub001/internal/merkle"
	"github.com/bloppan/vinwolf-sub001/internal/params"
	"github.com/bloppan/vinwolf-sub001/internal/stf"
	vlog "github.com/bloppan/vinwolf-sub001/log"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

// Config collects jam's CLI-tunable settings.
type Config struct {
	Profile     string
	GenesisPath string
	BlocksPath  string
	Verbosity   int
}

func DefaultConfig() Config {
	return Config{Profile: "tiny", Verbosity: 3}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code. Accepts CLI
// arguments (without the program name) so it can be tested in isolation.
func run(args []string) int {
	cfg, exit, code := parseFlags(args)
	if exit {
		return code
	}

	vlog.SetDefault(vlog.New(verbosityToLevel(cfg.Verbosity)))
	log := vlog.Module("cmd")
	log.Info("jam starting", "version", version, "profile", cfg.Profile,
		"genesis", cfg.GenesisPath, "blocks", cfg.BlocksPath)

	if cfg.GenesisPath == "" || cfg.BlocksPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --genesis and --blocks are required")
		return 2
	}

	profile, err := resolveProfile(cfg.Profile)
	if err != nil {
		log.Error("invalid profile", "err", err)
		return 1
	}

	kv, err := loadGenesis(cfg.GenesisPath)
	if err != nil {
		log.Error("failed to load genesis", "err", err)
		return 1
	}
	state, err := jamstate.FromKeyvals(profile, kv)
	if err != nil {
		log.Error("failed to build genesis state", "err", err)
		return 1
	}
	h := jamstate.NewHandler(state)

	blocks, err := loadBlocks(cfg.BlocksPath)
	if err != nil {
		log.Error("failed to load blocks", "err", err)
		return 1
	}

	var parent stf.ParentInfo
	for i, block := range blocks {
		isBootstrap := i == 0 && len(h.RecentHistory()) == 0
		markers, err := stf.Apply(profile, h, block, accumulation.DeterministicInvoker{}, parent, isBootstrap)
		if err != nil {
			log.Error("block rejected", "index", i, "slot", block.Header.Slot, "err", err)
			return 1
		}

		stateRoot := merkle.StateRoot(h.State().Serialize())
		parent = stf.ParentInfo{
			HeaderHash: header.ComputeHeaderHash(block.Header),
			StateRoot:  stateRoot,
		}
		log.Info("block applied", "index", i, "slot", block.Header.Slot,
			"state_root", hex.EncodeToString(stateRoot[:]),
			"accumulation_root", hex.EncodeToString(markers.AccumulationRoot[:]),
			"reported_packages", len(markers.ReportedPackages))
	}

	fmt.Printf("final state root: %s\n", hex.EncodeToString(parent.StateRoot[:]))
	return 0
}

// parseFlags parses CLI arguments into a Config. Returns the config,
// whether the caller should exit immediately, and the exit code.
func parseFlags(args []string) (Config, bool, int) {
	cfg := DefaultConfig()
	fs := newFlagSet(&cfg)
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cfg, true, 2
	}
	if *showVersion {
		fmt.Printf("jam %s (commit %s)\n", version, commit)
		return cfg, true, 0
	}
	return cfg, false, 0
}

func newFlagSet(cfg *Config) *flagSet {
	fs := newCustomFlagSet("jam")
	fs.StringVar(&cfg.Profile, "profile", cfg.Profile, "protocol parameter profile (tiny, full)")
	fs.StringVar(&cfg.GenesisPath, "genesis", cfg.GenesisPath, "path to a genesis key-value JSON dump")
	fs.StringVar(&cfg.BlocksPath, "blocks", cfg.BlocksPath, "path to a JSON array of blocks to apply in order")
	fs.IntVar(&cfg.Verbosity, "verbosity", cfg.Verbosity, "log level 0-5 (0-2=warn, 3=info, 4-5=debug)")
	return fs
}

func verbosityToLevel(v int) slog.Level {
	switch {
	case v <= 2:
		return slog.LevelWarn
	case v == 3:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

func resolveProfile(name string) (*params.Config, error) {
	switch name {
	case "tiny":
		return params.Tiny, nil
	case "full":
		return params.Full, nil
	default:
		return nil, fmt.Errorf("unknown profile %q (want tiny or full)", name)
	}
}

// loadGenesis reads a JSON object mapping hex-encoded 32-byte keys to
// hex-encoded values into the flat keyval shape jamstate.FromKeyvals
// expects.
func loadGenesis(path string) (map[jamtypes.Hash][]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var encoded map[string]string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, fmt.Errorf("parse genesis: %w", err)
	}
	kv := make(map[jamtypes.Hash][]byte, len(encoded))
	for k, v := range encoded {
		keyBytes, err := hex.DecodeString(k)
		if err != nil || len(keyBytes) != 32 {
			return nil, fmt.Errorf("genesis key %q: want 32 hex-encoded bytes", k)
		}
		valBytes, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("genesis value for key %q: %w", k, err)
		}
		var key jamtypes.Hash
		copy(key[:], keyBytes)
		kv[key] = valBytes
	}
	return kv, nil
}

// loadBlocks reads a JSON array of blocks, one per application, in order.
func loadBlocks(path string) ([]jamtypes.Block, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var blocks []jamtypes.Block
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, fmt.Errorf("parse blocks: %w", err)
	}
	return blocks, nil
}
