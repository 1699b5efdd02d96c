package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/facebookgo/flagenv"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/UniAttendHQ/uniattend"
	"github.com/UniAttendHQ/uniattend/internal"
	libuniattend "github.com/UniAttendHQ/uniattend/lib"
	"github.com/UniAttendHQ/uniattend/lib/registry"
	"github.com/UniAttendHQ/uniattend/lib/store"
	_ "github.com/UniAttendHQ/uniattend/lib/store/all"
	"github.com/UniAttendHQ/uniattend/lib/verify"
)

var (
	bind        = flag.String("bind", ":8080", "network address to bind HTTP to")
	metricsBind = flag.String("metrics-bind", ":9090", "network address to bind metrics to, empty disables metrics")
	slogLevel   = flag.String("slog-level", "INFO", "logging level (see https://pkg.go.dev/log/slog#hdr-Levels)")
	valkeyURL   = flag.String("valkey-url", "", "URL of the shared valkey/redis challenge store, e.g. redis://localhost:6379/0")
	bboltPath   = flag.String("bbolt-path", "", "path to a bbolt database file for local durable challenge storage")
	postgresDSN = flag.String("postgres-dsn", "", "postgres connection string for the subject registry, in-memory if unset")
	jwtSecret   = flag.String("jwt-secret", "", "secret used to sign admin bearer tokens, random if unset")
	tuningFname = flag.String("tuning-fname", "", "full path to a verification tuning file (defaults resolve without one)")
	versionFlag = flag.Bool("version", false, "print UniAttend version")
)

// buildStore picks the challenge store backend once at startup: valkey if
// configured and reachable, then bbolt, then the in-process fallback. A
// configured backend that can't be reached degrades to the next one with a
// loud warning rather than killing the daemon; the selection never changes
// after this, so no key ever spans two backings.
func buildStore(ctx context.Context, valkeyURL, bboltPath string) (store.Interface, error) {
	if valkeyURL != "" {
		result, err := buildBackend(ctx, "valkey", map[string]string{"url": valkeyURL})
		if err == nil {
			slog.Info("using valkey challenge store")
			return result, nil
		}

		slog.Warn("valkey store is unreachable, falling back to local storage; other instances will not see challenges issued here", "err", err)
	}

	if bboltPath != "" {
		result, err := buildBackend(ctx, "bbolt", map[string]string{"path": bboltPath})
		if err == nil {
			slog.Info("using bbolt challenge store", "path", bboltPath)
			return result, nil
		}

		slog.Warn("can't open bbolt store, falling back to the in-memory map", "path", bboltPath, "err", err)
	}

	slog.Warn("using in-memory challenge store, challenges will not survive a restart and multiple instances will not see each other's challenges")
	return buildBackend(ctx, "memory", nil)
}

func buildBackend(ctx context.Context, name string, config any) (store.Interface, error) {
	factory, ok := store.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown store backend %q, must be one of %v", name, store.Methods())
	}

	data, err := json.Marshal(config)
	if err != nil {
		return nil, err
	}

	result, err := factory.Build(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("can't build %s store: %w", name, err)
	}

	return result, nil
}

func buildRegistry(ctx context.Context) (registry.Subjects, registry.Presence, registry.Admins, error) {
	if *postgresDSN == "" {
		slog.Warn("POSTGRES_DSN is not set, subject and attendance records are in-memory only")
		mem := registry.NewMemory()
		return mem, mem, mem, nil
	}

	pg, err := registry.NewPostgres(ctx, *postgresDSN)
	if err != nil {
		return nil, nil, nil, err
	}

	return pg, pg, pg, nil
}

func secret() []byte {
	if *jwtSecret != "" {
		return []byte(*jwtSecret)
	}

	slog.Warn("JWT_SECRET is not set, generating a random one; admin tokens will not survive a restart or work across instances")
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("can't generate random secret: %v", err)
	}
	return buf
}

func main() {
	flagenv.Parse()
	flag.Parse()

	if *versionFlag {
		fmt.Println("uniattend", uniattend.Version)
		return
	}

	internal.InitSlog(*slogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := buildStore(ctx, *valkeyURL, *bboltPath)
	if err != nil {
		log.Fatalf("can't build challenge store: %v", err)
	}

	subjects, presence, admins, err := buildRegistry(ctx)
	if err != nil {
		log.Fatalf("can't build registry: %v", err)
	}

	tuning, err := verify.LoadTuning(*tuningFname)
	if err != nil {
		log.Fatalf("can't load tuning: %v", err)
	}

	s, err := libuniattend.New(libuniattend.Options{
		Store:     st,
		Subjects:  subjects,
		Presence:  presence,
		Admins:    admins,
		JWTSecret: secret(),
		Tuning:    tuning,
	})
	if err != nil {
		log.Fatalf("can't construct server: %v", err)
	}

	wg := new(sync.WaitGroup)

	if *metricsBind != "" {
		wg.Add(1)
		go metricsServer(ctx, wg.Done)
	}

	srv := http.Server{Addr: *bind, Handler: s}
	slog.Info(
		"listening",
		"bind", *bind,
		"version", uniattend.Version,
		"challenge-ttl", tuning.ChallengeTTL(),
		"session-deadline", tuning.SessionDeadline(),
		"store-backends", store.Methods(),
	)

	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			log.Printf("cannot shut down: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	wg.Wait()
}

func metricsServer(ctx context.Context, done func()) {
	defer done()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := http.Server{Addr: *metricsBind, Handler: mux}
	slog.Debug("listening for metrics", "bind", *metricsBind)

	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			log.Printf("cannot shut down metrics server: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
