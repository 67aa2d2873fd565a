// Command geometryd serves a geometry catalog over HTTP.
//
//	geometryd -addr :8080 -catalog parts.lisp -delay 100ms
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chazu/facepick/pkg/catalog"
	"github.com/chazu/facepick/pkg/engine"
	"github.com/chazu/facepick/pkg/server"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "listen address")
	catalogPath := flag.String("catalog", "", "catalog source file (default: built-in catalog)")
	delay := flag.Duration("delay", server.DefaultDelay, "simulated processing delay per request")
	quiet := flag.Bool("quiet", false, "disable the access log")
	flag.Parse()

	cat, err := loadCatalog(*catalogPath)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("catalog: %d ids, fallback=%v", cat.Len(), cat.HasFallback())

	cfg := server.DefaultConfig()
	cfg.Delay = *delay
	if !*quiet {
		cfg.AccessLog = os.Stderr
	}
	srv := server.New(cat, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(*addr); err != nil {
		log.Fatal(err)
	}
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	source := engine.DefaultSource
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		source = string(b)
	}

	cat, evalErrs, err := engine.NewEngine().Evaluate(source)
	if err != nil {
		return nil, err
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			log.Printf("%s: %v", path, e)
		}
		return nil, evalErrs[0]
	}
	return cat, nil
}
