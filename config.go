package main

import (
	"log"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	str2duration "github.com/xhit/go-str2duration/v2"
)

const (
	JobQueueCapacity  = 100
	RequestsPerSecond = 100
	BurstSize         = 200

	maxWorkers = 16 // cap for shared hosting
)

// Config holds all environment-driven settings.
type Config struct {
	Port        string
	WorkerCount int

	DBPath      string
	DownloadDir string
	SessionDir  string

	// SessionTTL is the single authoritative expiry for jobs, artifacts
	// and session records alike.
	SessionTTL     time.Duration
	ReaperInterval time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// DurationLimits caps media length per resolution tier. Tiers
	// without an entry have no ceiling.
	DurationLimits map[string]time.Duration
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := Config{
		Port:           envOr("PORT", "8080"),
		WorkerCount:    safeWorkerCount(),
		DBPath:         envOr("DB_PATH", "downloads.db"),
		DownloadDir:    envOr("DOWNLOAD_DIR", "downloads"),
		SessionDir:     envOr("SESSION_DIR", "sessions"),
		SessionTTL:     envDuration("SESSION_TTL", time.Hour),
		ReaperInterval: envDuration("REAPER_INTERVAL", time.Minute),
		RedisAddr:      envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        0,
		DurationLimits: map[string]time.Duration{
			"4k": envDuration("LIMIT_4K", 15*time.Minute),
			"2k": envDuration("LIMIT_2K", 30*time.Minute),
		},
	}
	return cfg
}

// safeWorkerCount derives the pool size from available CPUs, capped
// low for shared hosts, with a WORKER_COUNT override clamped to [1,16].
func safeWorkerCount() int {
	if v := os.Getenv("WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return clamp(n, 1, maxWorkers)
		}
	}
	return clamp(runtime.NumCPU(), 1, 4)
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := str2duration.ParseDuration(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %s: %v", key, v, def, err)
		return def
	}
	return d
}
