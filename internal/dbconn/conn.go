// Package dbconn bootstraps the shared connections the collector needs:
// a Postgres pool for the DB sink and, when Init is asked for one, a Redis
// client. Both use a bounded connect-with-retry loop
// instead of failing on the first transient dial error.
package dbconn

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/Zeebrow/ec2-price-tracker/internal/obslog"
)

// Conn holds the connections a run needs. Cache is nil unless Init was
// called with withRedis set; the Redis-backed Status collaborator in
// cmd/scrpr opens its own client and does not use this one.
type Conn struct {
	DB    *pgxpool.Pool
	Cache *redis.Client
}

type dbResult struct {
	pool *pgxpool.Pool
	err  error
}

type redisResult struct {
	client *redis.Client
	err    error
}

// Init connects to Postgres, and to Redis when withRedis is true, each
// under a 90-second connect timeout with a 1-second poll between attempts.
// It returns a cleanup func that closes whatever was opened.
func Init(ctx context.Context, withRedis bool) (*Conn, func(), error) {
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "postgres")
	dbPassword := getEnv("DB_PASSWORD", "")
	dbName := getEnv("DB_NAME", "ec2_price_tracker")

	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s", dbUser, url.QueryEscape(dbPassword), dbHost, dbPort, dbName)

	dbCtx, cancel := context.WithTimeout(ctx, 90*time.Second)
	defer cancel()

	pool, err := connectDB(dbCtx, dbURL)
	if err != nil {
		return nil, func() {}, fmt.Errorf("dbconn: connecting to postgres: %w", err)
	}

	conn := &Conn{DB: pool}
	cleanup := func() {
		if conn.DB != nil {
			conn.DB.Close()
		}
		if conn.Cache != nil {
			if err := conn.Cache.Close(); err != nil {
				obslog.Get().WithError(err).Warn("closing redis connection")
			}
		}
	}

	if withRedis {
		redisHost := getEnv("REDIS_HOST", "localhost")
		redisPort := getEnv("REDIS_PORT", "6379")
		redisPassword := getEnv("REDIS_PASSWORD", "")

		redisCtx, rcancel := context.WithTimeout(ctx, 90*time.Second)
		defer rcancel()

		client, err := connectRedis(redisCtx, redisHost+":"+redisPort, redisPassword)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("dbconn: connecting to redis: %w", err)
		}
		conn.Cache = client
	}

	return conn, cleanup, nil
}

func connectDB(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	results := make(chan dbResult, 1)
	go func() {
		var lastErr error
		for {
			select {
			case <-ctx.Done():
				results <- dbResult{nil, lastErr}
				return
			default:
			}
			poolConfig, err := pgxpool.ParseConfig(dbURL)
			if err != nil {
				lastErr = err
				time.Sleep(time.Second)
				continue
			}
			poolConfig.MaxConns = 10
			poolConfig.MinConns = 1
			poolConfig.MaxConnLifetime = 60 * time.Minute
			poolConfig.MaxConnIdleTime = 5 * time.Minute
			poolConfig.HealthCheckPeriod = 30 * time.Second
			poolConfig.ConnConfig.ConnectTimeout = 10 * time.Second

			pool, err := pgxpool.ConnectConfig(ctx, poolConfig)
			if err != nil {
				lastErr = err
				time.Sleep(time.Second)
				continue
			}
			results <- dbResult{pool, nil}
			return
		}
	}()
	res := <-results
	if res.err != nil {
		return nil, res.err
	}
	return res.pool, nil
}

func connectRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
	results := make(chan redisResult, 1)
	go func() {
		var lastErr error
		for {
			select {
			case <-ctx.Done():
				results <- redisResult{nil, lastErr}
				return
			default:
			}
			client := redis.NewClient(&redis.Options{
				Addr:        addr,
				Password:    password,
				DialTimeout: 5 * time.Second,
			})
			if err := client.Ping(ctx).Err(); err != nil {
				lastErr = err
				client.Close()
				time.Sleep(time.Second)
				continue
			}
			results <- redisResult{client, nil}
			return
		}
	}()
	res := <-results
	if res.err != nil {
		return nil, res.err
	}
	return res.client, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
