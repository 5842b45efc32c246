package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/agenthands/depo/internal/archive"
	"github.com/agenthands/depo/internal/config"
	"github.com/agenthands/depo/internal/core"
	"github.com/agenthands/depo/internal/driver"
	"github.com/agenthands/depo/internal/llm"
	"github.com/agenthands/depo/internal/server"
	"github.com/agenthands/depo/internal/store"
	"github.com/agenthands/depo/internal/tasks"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, found, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if !found {
		log.Printf("Warning: %s not found, using built-in defaults", cfgPath)
	}
	cfg.ApplyEnv(os.Getenv)

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

// run wires the application and blocks until it has shut down. Deferred cleanup runs
// on every return path.
func run(cfg *config.Config) error {
	ctx := context.Background()

	st, closeStore, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer closeStore()

	oracle, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	queue := tasks.NewQueue(cfg.Tasks.Workers, cfg.Tasks.Buffer)
	queue.SetRetention(cfg.Tasks.Retain)
	d := core.NewDepositions(st, oracle, queue, cfg)

	if cfg.Memgraph.URI != "" {
		g, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password)
		if err != nil {
			log.Printf("Warning: contradiction graph disabled, failed to connect to Memgraph: %v", err)
		} else {
			defer g.Close(context.Background())
			if err := g.BuildIndices(ctx); err != nil {
				log.Printf("Warning: failed to build graph indices: %v", err)
			}
			d.Projector = driver.NewGraphProjector(g)
		}
	}

	if cfg.Archive.Endpoint != "" {
		a, err := archive.NewMinIOArchive(ctx, cfg.Archive)
		if err != nil {
			log.Printf("Warning: upload archive disabled: %v", err)
		} else {
			d.Archive = a
		}
	}

	srv := server.NewServer(d, cfg.Upload)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: srv.SetupRouter(),
	}

	ln, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		queue.Shutdown(ctx)
		return err
	}

	// signal.Notify requires the channel to be buffered
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	log.Printf("Starting server on port %s (llm=%s/%s, storage=%s)", cfg.Server.Port, cfg.LLM.Provider, cfg.LLM.Model, cfg.Storage.Driver)
	return serve(httpServer, ln, queue, stop, shutdownTimeout)
}

const shutdownTimeout = 30 * time.Second

// serve runs httpServer on ln until stop fires. In-flight requests finish before the
// task queue stops taking work, then queued jobs are drained.
func serve(httpServer *http.Server, ln net.Listener, queue *tasks.Queue, stop <-chan os.Signal, timeout time.Duration) error {
	drained := make(chan error, 1)
	go func() {
		<-stop
		log.Println("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP shutdown: %v", err)
		}
		drained <- queue.Shutdown(shutdownCtx)
	}()

	if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		queue.Shutdown(context.Background())
		return err
	}

	if err := <-drained; err != nil {
		return fmt.Errorf("task queue shutdown: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (store.Store, func(), error) {
	var (
		st      store.Store
		closeFn = func() {}
	)

	switch cfg.Driver {
	case "postgres":
		g, err := store.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		st = g
		closeFn = func() {
			if err := g.Close(); err != nil {
				log.Printf("Failed to close database: %v", err)
			}
		}
		log.Println("Using postgres store")
	default:
		st = store.NewMemory()
		log.Println("Using in-memory store")
	}

	if cfg.SeedSample {
		cases, err := st.ListCases(ctx)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		if len(cases) == 0 {
			c, err := store.SeedSample(ctx, st)
			if err != nil {
				closeFn()
				return nil, nil, err
			}
			log.Printf("Seeded sample case %d (%s)", c.ID, c.Title)
		}
	}
	return st, closeFn, nil
}
