// Command scrpr is the collector's entrypoint. It dispatches to one of a
// small set of subcommands through a name-to-handler table, the same
// dispatch idiom the teacher's own CLI used.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	goredis "github.com/go-redis/redis/v8"

	"github.com/Zeebrow/ec2-price-tracker/internal/config"
	"github.com/Zeebrow/ec2-price-tracker/internal/controlapi"
	"github.com/Zeebrow/ec2-price-tracker/internal/dbconn"
	"github.com/Zeebrow/ec2-price-tracker/internal/obslog"
	"github.com/Zeebrow/ec2-price-tracker/internal/pagedriver"
	"github.com/Zeebrow/ec2-price-tracker/internal/runctl"
	"github.com/Zeebrow/ec2-price-tracker/internal/sinks/dbsink"
	"github.com/Zeebrow/ec2-price-tracker/internal/statusstore"
)

type command func(args []string) error

var commands = map[string]command{
	"run":   runCommand,
	"serve": serveCommand,
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: scrpr <run|serve> [flags]")
		os.Exit(2)
	}

	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", os.Args[1])
		os.Exit(2)
	}

	if err := cmd(os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runCommand performs one traversal and exits, or services one of the
// supplemented print-and-exit modes (--check-size, --get-operating-systems,
// --get-regions) without ever starting the worker pool.
func runCommand(args []string) error {
	cfg, err := config.Parse(args)
	if err != nil {
		return err
	}

	log, err := obslog.Init(obslog.Config{
		Verbosity: cfg.Verbosity,
		Follow:    cfg.Follow,
		LogFile:   cfg.LogFile,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	needsDB := cfg.Engine.StoreDB || cfg.CheckSize
	var db *dbsink.Sink
	if needsDB {
		conn, cleanup, err := dbconn.Init(ctx, false)
		if err != nil {
			return err
		}
		defer cleanup()
		db = dbsink.New(conn.DB)
	}

	if cfg.CheckSize {
		return printTableSizes(ctx, db)
	}

	if cfg.GetOS || cfg.GetRegions {
		return printCatalogs(ctx, cfg.GetOS, cfg.GetRegions)
	}

	status, closeStatus, err := newStatusStore(cfg.StatusBackend)
	if err != nil {
		return err
	}
	defer closeStatus()

	var runNo int64
	ctrl := &runctl.Controller{
		Status:    status,
		NewDriver: newRodDriver,
		DB:        db,
		RunNo:     func() int64 { return atomic.AddInt64(&runNo, 1) },
	}

	log.Info("starting collection run")
	return ctrl.Run(ctx, cfg.Engine)
}

// serveCommand starts the HTTP control API and waits for a signal. A run
// is only ever launched on demand via POST /run; serve never runs one
// itself.
func serveCommand(args []string) error {
	cfg, err := config.Parse(args)
	if err != nil {
		return err
	}

	log, err := obslog.Init(obslog.Config{
		Verbosity: cfg.Verbosity,
		Follow:    cfg.Follow,
		LogFile:   cfg.LogFile,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *dbsink.Sink
	if cfg.Engine.StoreDB {
		conn, cleanup, err := dbconn.Init(ctx, false)
		if err != nil {
			return err
		}
		defer cleanup()
		db = dbsink.New(conn.DB)
	}

	status, closeStatus, err := newStatusStore(cfg.StatusBackend)
	if err != nil {
		return err
	}
	defer closeStatus()

	var runNo int64
	srv := &controlapi.Server{
		Controller: &runctl.Controller{
			Status:    status,
			NewDriver: newRodDriver,
			DB:        db,
			RunNo:     func() int64 { return atomic.AddInt64(&runNo, 1) },
		},
		Default: cfg.Engine,
	}

	httpServer := &http.Server{Addr: ":8080", Handler: srv.NewMux()}
	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.WithField("addr", httpServer.Addr).Info("control api listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func newRodDriver(ctx context.Context) (pagedriver.Driver, error) {
	return pagedriver.NewRodDriver(ctx)
}

// newStatusStore builds the Status collaborator named by backend, along
// with a cleanup func that closes whatever connection it opened (a no-op
// for the in-process memory store).
func newStatusStore(backend string) (statusstore.Store, func(), error) {
	switch backend {
	case "memory":
		return statusstore.NewMemoryStore(), func() {}, nil
	case "redis":
		redisHost := envOr("REDIS_HOST", "localhost")
		redisPort := envOr("REDIS_PORT", "6379")
		client := goredis.NewClient(&goredis.Options{
			Addr:     redisHost + ":" + redisPort,
			Password: envOr("REDIS_PASSWORD", ""),
		})
		store := statusstore.NewRedisStore(client)
		return store, func() { _ = client.Close() }, nil
	default:
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			envOr("DB_USER", "postgres"),
			envOr("DB_PASSWORD", ""),
			envOr("DB_HOST", "localhost"),
			envOr("DB_PORT", "5432"),
			envOr("DB_NAME", "ec2_price_tracker"),
		)
		store, err := statusstore.NewPostgresStore(dsn)
		if err != nil {
			return nil, func() {}, err
		}
		return store, func() { _ = store.Close() }, nil
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func printTableSizes(ctx context.Context, db *dbsink.Sink) error {
	for _, table := range []string{"ec2_instance_pricing", "metric_data", "command_line"} {
		size, err := db.TableSize(ctx, table)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%d bytes\n", table, size)
	}
	return nil
}

func printCatalogs(ctx context.Context, printOS, printRegions bool) error {
	driver, err := newRodDriver(ctx)
	if err != nil {
		return err
	}
	defer driver.Close()

	if printOS {
		oses, err := driver.ListOperatingSystems(ctx)
		if err != nil {
			return err
		}
		for _, os := range oses {
			fmt.Println(os)
		}
	}
	if printRegions {
		regions, err := driver.ListRegions(ctx)
		if err != nil {
			return err
		}
		for _, region := range regions {
			fmt.Println(region)
		}
	}
	return nil
}
