package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/internetbuilder/hive/libraries/blocklog"
	"github.com/internetbuilder/hive/libraries/chain"
	"github.com/internetbuilder/hive/libraries/config"
	"github.com/internetbuilder/hive/libraries/encoding"
	"github.com/internetbuilder/hive/libraries/enforce"
	"github.com/internetbuilder/hive/libraries/logger"
	"github.com/internetbuilder/hive/libraries/profiler"
	"github.com/internetbuilder/hive/services/blocktool/internal"
)

var Version = "dev"

var logCategories = []string{
	"startup", "blocklog", "http", "stream", "verify", "rewrite", "archive",
	"shutdown", "profiler", "enforce",
	"debug", "debug-timing", "debug-recovery",
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: blocktool <command> [options]

commands:
  info           Print head block and file sizes of a block log
  verify         Validate every block, trailer, and index entry
  rebuild-index  Reconstruct the positional index from the log
  rewrite        Write a pruned copy containing blocks [1..max-block]
  archive        Write a zstd-compressed cold storage copy
  serve          Serve the log over a read-only HTTP API

run 'blocktool <command> --help' for options
`)
	os.Exit(2)
}

func main() {
	config.CheckVersion(Version)

	if len(os.Args) < 2 {
		usage()
	}
	command := os.Args[1]

	var cfg Config
	if err := config.Load(&cfg, os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger.RegisterCategories(logCategories...)
	logger.SetCategoryFilter(cfg.LogFilter)
	if cfg.Debug {
		logger.SetMinLevel(logger.LevelDebug)
		logger.SetCategoryFilter(nil)
	}
	if cfg.LogFile != "" {
		enforce.ENFORCE(logger.SetLogFile(cfg.LogFile), "cannot open log file", cfg.LogFile)
	}
	defer logger.Close()

	logger.Printf("startup", "blocktool %s: %s %s", Version, command, cfg.Path)

	if cfg.Profile {
		profiler.Start(profiler.Config{
			ServiceName: "blocktool",
			Interval:    time.Duration(cfg.ProfileInterval) * time.Second,
		})
		defer profiler.Stop()
	}

	var err error
	switch command {
	case "info":
		err = runInfo(&cfg)
	case "verify":
		err = runVerify(&cfg)
	case "rebuild-index":
		err = runRebuildIndex(&cfg)
	case "rewrite":
		err = runRewrite(&cfg)
	case "archive":
		err = runArchive(&cfg)
	case "serve":
		err = runServe(&cfg)
	default:
		usage()
	}

	if err != nil {
		logger.Error("%s failed: %v", command, err)
		os.Exit(1)
	}
}

func runInfo(cfg *Config) error {
	info, err := internal.Info(cfg.Path)
	if err != nil {
		return err
	}

	enc := encoding.JSONiter.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

func runVerify(cfg *Config) error {
	_, err := internal.Verify(cfg.Path, cfg.Workers)
	return err
}

func runRebuildIndex(cfg *Config) error {
	l, err := blocklog.Open(cfg.Path, blocklog.Options{
		Codec: chain.Codec{},
		// Single-threaded bulk scan; locks buy nothing here.
		DisableLocking: true,
	})
	if err != nil {
		return err
	}
	defer l.Close()

	indexPos := uint64(0)
	if cfg.Resume {
		stat, err := os.Stat(l.IndexPath())
		if err != nil {
			return err
		}
		indexPos = uint64(stat.Size())
	}

	if err := l.ConstructIndex(cfg.Resume, indexPos); err != nil {
		return err
	}

	logger.Printf("blocklog", "Index rebuilt: %s blocks", logger.FormatCount(int64(l.Count())))
	return l.Close()
}

func runRewrite(cfg *Config) error {
	if cfg.Output == "" {
		return fmt.Errorf("rewrite requires --output")
	}
	if cfg.MaxBlock == 0 {
		return fmt.Errorf("rewrite requires --max-block")
	}
	return blocklog.Rewrite(cfg.Path, cfg.Output, chain.Codec{}, cfg.MaxBlock)
}

func runArchive(cfg *Config) error {
	result, err := internal.Archive(cfg.Path, cfg.ArchiveDir, cfg.ZstdLevel)
	if err != nil {
		return err
	}

	enc := encoding.JSONiter.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runServe(cfg *Config) error {
	l, err := blocklog.Open(cfg.Path, blocklog.Options{Codec: chain.Codec{}})
	if err != nil {
		return err
	}
	defer l.Close()

	if head := l.Head(); head != nil {
		logger.Printf("startup", "Serving block log with head %d", head.BlockNum())
	} else {
		logger.Printf("startup", "Serving empty block log")
	}

	shutdown := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Printf("shutdown", "Received %v", sig)
		close(shutdown)
	}()

	return internal.Serve(l, internal.ServeConfig{
		HTTPListen:     cfg.HTTPListen,
		HTTPSocket:     cfg.HTTPSocket,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		StreamEnabled:  cfg.StreamEnabled,
		StreamInterval: cfg.StreamInterval,
	}, shutdown)
}
