// Command dserver is the document-index daemon described in spec §6:
// "dserver <document_folder> <cache_size>". It loads layered
// configuration (§10.1), opens the record store and LRU cache, and
// runs the request loop until a shutdown request arrives.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/dindex/internal/cache"
	"github.com/calvinalkan/dindex/internal/config"
	"github.com/calvinalkan/dindex/internal/logging"
	"github.com/calvinalkan/dindex/internal/server"
	"github.com/calvinalkan/dindex/internal/store"
)

func main() {
	os.Exit(run(os.Args, os.Environ(), os.Stderr))
}

func run(args []string, env []string, errOut *os.File) int {
	log := logging.New(errOut)

	flags := flag.NewFlagSet("dserver", flag.ContinueOnError)
	flags.Usage = func() {}
	flags.SetOutput(errOut)

	flagFIFODir := flags.String("fifo-dir", "", "Override the FIFO `directory`")
	flagCwd := flags.StringP("cwd", "C", "", "Run as if started in `dir`")

	if err := flags.Parse(args[1:]); err != nil {
		log.Error("parsing flags: %v", err)
		return 2
	}

	positional := flags.Args()
	if len(positional) != 2 {
		fmt.Fprintln(errOut, "usage: dserver <document_folder> <cache_size>") //nolint:errcheck // stderr write failure is unactionable here
		return 2
	}

	cacheSize, err := strconv.Atoi(positional[1])
	if err != nil || cacheSize < 0 {
		log.Error("invalid cache_size %q: %v", positional[1], err)
		return 2
	}

	workDir := *flagCwd
	if workDir == "" {
		wd, wdErr := os.Getwd()
		if wdErr != nil {
			log.Error("resolving working directory: %v", wdErr)
			return 2
		}

		workDir = wd
	}

	cliOverrides := config.Config{
		DocumentRoot: positional[0],
		CacheSize:    cacheSize,
	}
	if *flagFIFODir != "" {
		cliOverrides.FIFODir = *flagFIFODir
	}

	cfg, err := config.Load(workDir, cliOverrides, env, true)
	if err != nil {
		log.Error("loading config: %v", err)
		return 2
	}

	// The positional cache_size always wins, including 0, which merge
	// would otherwise treat as "unset".
	cfg.CacheSize = cacheSize

	log.Info("starting: document_root=%s cache_size=%d fifo_dir=%s", cfg.DocumentRoot, cfg.CacheSize, cfg.FIFODir)

	if err := os.MkdirAll(cfg.FIFODir, 0o750); err != nil {
		log.Error("creating fifo directory: %v", err)
		return 1
	}

	storePath := filepath.Join(cfg.FIFODir, server.StorePath)
	cachePath := filepath.Join(cfg.FIFODir, server.CachePath)

	st, err := store.Init(storePath)
	if err != nil {
		log.Error("opening store: %v", err)
		return 1
	}

	c, err := cache.Load(cachePath, cfg.CacheSize)
	if err != nil {
		log.Error("loading cache: %v", err)
		_ = st.Close()

		return 1
	}

	srv := server.New(st, c, cfg.DocumentRoot, cfg.FIFODir, cachePath, log)

	if err := srv.Run(); err != nil {
		log.Error("server loop: %v", err)
		return 1
	}

	log.Info("shutdown complete")

	return 0
}
