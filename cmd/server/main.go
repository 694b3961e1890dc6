package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/persistence/chatlog"
	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/persistence/profiledb"
	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/session"
	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/textgen"
	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/transport/ws"
	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/tuning"
)

// The server listens locally; a cloudflared tunnel forwards
// wss://ws.voltaccept.com to it.
func main() {
	var (
		addr       = flag.String("addr", ":8765", "http listen address")
		configPath = flag.String("config", "./configs/tuning.yaml", "path to tuning.yaml")
		dataDir    = flag.String("data", "./data", "runtime data directory")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *configPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	store, err := profiledb.Open(filepath.Join(*dataDir, "players.db"))
	if err != nil {
		logger.Fatalf("open profile db: %v", err)
	}
	defer store.Close()

	chatLog := chatlog.NewWriter(filepath.Join(*dataDir, "chat"))
	defer chatLog.Close()

	apiKey := strings.TrimSpace(os.Getenv("GROQ_API_KEY"))
	if apiKey == "" {
		logger.Printf("GROQ_API_KEY not set; agents will use fallback chat only")
	}
	gen := textgen.NewClient(
		tune.TextGen.APIURL,
		apiKey,
		tune.TextGen.Model,
		time.Duration(tune.TextGen.TimeoutSeconds)*time.Second,
		rate.NewLimiter(rate.Limit(tune.TextGen.RequestsPerSec), tune.TextGen.Burst),
	)

	hub := session.NewHub(logger, tune, gen, store, chatLog)
	defer hub.Shutdown()

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		fmt.Fprintf(rw, "# HELP platformer_sessions Connected human sessions.\n")
		fmt.Fprintf(rw, "# TYPE platformer_sessions gauge\n")
		fmt.Fprintf(rw, "platformer_sessions %d\n", hub.HumanCount())

		fmt.Fprintf(rw, "# HELP platformer_agents Spawned autonomous agents.\n")
		fmt.Fprintf(rw, "# TYPE platformer_agents gauge\n")
		fmt.Fprintf(rw, "platformer_agents %d\n", hub.AgentCount())
	})
	mux.HandleFunc("/ws", ws.NewServer(hub, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (roster: %d agents, model %s)", *addr, len(tune.Agents), tune.TextGen.Model)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
