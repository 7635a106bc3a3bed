// Package main runs the gnet-driven entrypoint for the HTTP core.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	httpcore "github.com/lightcore/httpcore/internal/adapter/http"
	logadapter "github.com/lightcore/httpcore/internal/adapter/logging"
)

const (
	defaultAddr        = ":8080"
	defaultIdleTimeout = 10 * time.Second
	shutdownDeadline   = 10 * time.Second
)

// serverConfig configures runtime behavior from environment values.
type serverConfig struct {
	Addr        string
	Multicore   bool
	IdleTimeout time.Duration
	TLS         *httpcore.TLSOptions
}

// main boots the event loop and serves until an interrupt or SIGTERM.
func main() {
	cfg, err := loadServerConfigFromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	structuredLogger := logadapter.NewStdLogger(log.Default())

	ctx := httpcore.NewContext(cfg.TLS)
	ctx.IdleTimeout = cfg.IdleTimeout

	ctx.Use(httpcore.RequestID())
	ctx.Use(httpcore.RequestLogging(structuredLogger))
	ctx.SetPanicHandler(httpcore.Recovery(structuredLogger))

	ctx.Filter(func(res *httpcore.Response, event httpcore.ConnEvent) {
		if event == httpcore.ConnConnected {
			structuredLogger.Info("connection opened")
		} else {
			structuredLogger.Info("connection closed")
		}
	})

	ctx.OnHTTP("GET", "/health", func(res *httpcore.Response, req *httpcore.Request) {
		res.WriteStatus(200, "OK")
		res.WriteHeader("Content-Type", "text/plain")
		res.End([]byte("ok"))
	})

	ctx.OnHTTP("GET", "/hello/:name", func(res *httpcore.Response, req *httpcore.Request) {
		name, _ := req.Param("name")
		res.WriteStatus(200, "OK")
		res.WriteHeader("Content-Type", "text/plain")
		res.End([]byte("hello " + name))
	})

	ctx.OnHTTP("POST", "/echo", func(res *httpcore.Response, req *httpcore.Request) {
		var body []byte
		res.OnData(func(chunk []byte, isFinal bool) {
			body = append(body, chunk...)
			if isFinal {
				res.WriteStatus(200, "OK")
				res.WriteHeader("Content-Type", "application/octet-stream")
				res.End(body)
			}
		})
	})

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-signalCtx.Done()
		structuredLogger.Info("shutdown signal received", "action", "stop_engine")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownDeadline)
		defer cancel()
		if err := ctx.Shutdown(shutdownCtx); err != nil {
			structuredLogger.Error("engine shutdown failed", "error", err)
		}
	}()

	structuredLogger.Info("httpcore listening", "address", cfg.Addr, "multicore", cfg.Multicore)
	if err := ctx.Listen("tcp", cfg.Addr, cfg.Multicore); err != nil {
		log.Fatalf("listen: %v", err)
	}
	ctx.Free()
}

// loadServerConfigFromEnv loads runtime configuration from LIGHTCORE_* vars.
func loadServerConfigFromEnv() (serverConfig, error) {
	addr := strings.TrimSpace(os.Getenv("LIGHTCORE_ADDR"))
	if addr == "" {
		addr = defaultAddr
	}

	multicore, err := parseBoolEnv("LIGHTCORE_MULTICORE", false)
	if err != nil {
		return serverConfig{}, err
	}

	idleTimeout, err := parseDurationEnv("LIGHTCORE_IDLE_TIMEOUT", defaultIdleTimeout)
	if err != nil {
		return serverConfig{}, err
	}

	tls := loadTLSOptionsFromEnv()

	return serverConfig{
		Addr:        addr,
		Multicore:   multicore,
		IdleTimeout: idleTimeout,
		TLS:         tls,
	}, nil
}

// loadTLSOptionsFromEnv returns nil if no TLS material is configured, or a
// populated TLSOptions otherwise. The DH-params and passphrase fields are
// accepted and stored for parity with the original API surface, even
// though crypto/tls has no equivalent knob.
func loadTLSOptionsFromEnv() *httpcore.TLSOptions {
	cert := strings.TrimSpace(os.Getenv("LIGHTCORE_TLS_CERT_FILE"))
	key := strings.TrimSpace(os.Getenv("LIGHTCORE_TLS_KEY_FILE"))
	if cert == "" && key == "" {
		return nil
	}
	return &httpcore.TLSOptions{
		CertFile:     cert,
		KeyFile:      key,
		DHParamsFile: strings.TrimSpace(os.Getenv("LIGHTCORE_TLS_DH_PARAMS_FILE")),
		Passphrase:   strings.TrimSpace(os.Getenv("LIGHTCORE_TLS_PASSPHRASE")),
	}
}

// parseDurationEnv reads a duration env var with fallback default.
func parseDurationEnv(envKey string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(envKey))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", envKey, raw, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s: duration must be > 0", envKey)
	}
	return value, nil
}

// parseBoolEnv reads a boolean env var with fallback default.
func parseBoolEnv(envKey string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(envKey))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", envKey, raw)
	}
	return value, nil
}
