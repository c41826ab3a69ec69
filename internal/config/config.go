// Package config parses the Run configuration option table from spec §6
// into a runctl.Config plus the ambient flags (logging, control modes)
// that sit outside the engine proper.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/Zeebrow/ec2-price-tracker/internal/ec2err"
	"github.com/Zeebrow/ec2-price-tracker/internal/runctl"
)

// RunConfig is the fully resolved configuration for one invocation of
// `scrpr run`, combining the engine's runctl.Config with the ambient
// flags that surround it.
type RunConfig struct {
	Engine runctl.Config

	Follow        bool
	LogFile       string
	Verbosity     int
	CheckSize     bool
	GetOS         bool
	GetRegions    bool
	StatusBackend string // "postgres", "redis", or "memory"
}

// Parse parses args (normally the arguments after the subcommand,
// os.Args[2:]) into a RunConfig. It mirrors
// the flag surface of the Python original's do_args(): --follow,
// --log-file, -t/--thread-count, --overdrive-madness, --compress,
// --regions, --operating-systems, --get-operating-systems, --get-regions,
// -d/--csv-data-dir, --store-csv, --store-db, -v, --check-size.
func Parse(args []string) (RunConfig, error) {
	fs := flag.NewFlagSet("scrpr", flag.ContinueOnError)

	follow := fs.Bool("follow", false, "also log to stdout")
	logFile := fs.String("log-file", defaultLogFile(), "rotating log file path")
	threadCount := fs.Int("thread-count", runtime.NumCPU(), "requested worker count")
	fs.IntVar(threadCount, "t", runtime.NumCPU(), "shorthand for -thread-count")
	overdrive := fs.Bool("overdrive-madness", false, "disable the hardware-concurrency clamp")
	compress := fs.Bool("compress", true, "archive the csv tree after the run")
	regions := fs.String("regions", "", "comma-separated region allow-list")
	operatingSystems := fs.String("operating-systems", "", "comma-separated operating-system allow-list")
	getOS := fs.Bool("get-operating-systems", false, "print the operating-system catalog and exit")
	getRegions := fs.Bool("get-regions", false, "print the region catalog and exit")
	csvDataDir := fs.String("csv-data-dir", defaultCSVDataDir(), "root of the csv filesystem layout")
	fs.StringVar(csvDataDir, "d", defaultCSVDataDir(), "shorthand for -csv-data-dir")
	storeCSV := fs.Bool("store-csv", true, "enable the csv sink")
	storeDB := fs.Bool("store-db", true, "enable the db sink")
	verbosity := fs.Int("v", 0, "log verbosity: 0 info, 1 debug, 2 or more trace")
	checkSize := fs.Bool("check-size", false, "print current database table sizes and exit (the csv tree size is not printed)")
	statusBackend := fs.String("status-backend", "postgres", "status collaborator backing store: postgres, redis, or memory")

	if err := fs.Parse(args); err != nil {
		return RunConfig{}, fmt.Errorf("%w: %v", ec2err.ErrConfig, err)
	}

	switch *statusBackend {
	case "postgres", "redis", "memory":
	default:
		return RunConfig{}, fmt.Errorf("%w: unknown status backend %q", ec2err.ErrConfig, *statusBackend)
	}

	cfg := RunConfig{
		Follow:        *follow,
		LogFile:       *logFile,
		Verbosity:     *verbosity,
		CheckSize:     *checkSize,
		GetOS:         *getOS,
		GetRegions:    *getRegions,
		StatusBackend: *statusBackend,
		Engine: runctl.Config{
			ThreadCount:      *threadCount,
			OverdriveMadness: *overdrive,
			Compress:         *compress,
			Regions:          splitCSV(*regions),
			OperatingSystems: splitCSV(*operatingSystems),
			StoreCSV:         *storeCSV,
			StoreDB:          *storeDB,
			CSVDataDir:       *csvDataDir,
		},
	}

	blob, err := json.Marshal(cfg.Engine)
	if err != nil {
		return RunConfig{}, fmt.Errorf("%w: marshaling command line: %v", ec2err.ErrConfig, err)
	}
	cfg.Engine.CommandLineBlob = string(blob)

	return cfg, nil
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaultLogFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "scrpr.log"
	}
	return home + "/.local/share/scrpr/logs/scrpr.log"
}

func defaultCSVDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "csv-data"
	}
	return home + "/.local/share/scrpr/csv-data"
}
