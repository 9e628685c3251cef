// SPDX-FileCopyrightText: 2025 OpenCHAMI Contributors
//
// SPDX-License-Identifier: MIT

// Main entry point for the LINBO fleet control-plane core.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openchami/linbo-dc/internal/dhcpgen"
	"github.com/openchami/linbo-dc/internal/eventbus"
	"github.com/openchami/linbo-dc/internal/grubgen"
	"github.com/openchami/linbo-dc/internal/jobstream"
	"github.com/openchami/linbo-dc/internal/linboupdate"
	"github.com/openchami/linbo-dc/internal/model"
	"github.com/openchami/linbo-dc/internal/orchestrator"
	"github.com/openchami/linbo-dc/internal/runtime"
	"github.com/openchami/linbo-dc/internal/scanreconciler"
	"github.com/openchami/linbo-dc/internal/settings"
	"github.com/openchami/linbo-dc/internal/store"
	"github.com/openchami/linbo-dc/internal/sync"
	"github.com/openchami/linbo-dc/internal/theme"
	"github.com/openchami/linbo-dc/internal/upstream"
)

// Config holds all configuration for the control-plane core.
type Config struct {
	Port         int    `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`

	LinboDir      string `mapstructure:"linbo_dir"`
	LinboServerIP string `mapstructure:"linbo_server_ip"`
	WebPort       string `mapstructure:"web_port"`

	RedisAddr string `mapstructure:"redis_addr"`

	UpstreamURL string `mapstructure:"upstream_url"`
	LocalYAML   string `mapstructure:"local_yaml"`

	SyncIntervalSeconds int  `mapstructure:"sync_interval_seconds"`
	ProvisioningEnabled bool `mapstructure:"provisioning_enabled"`
	ProvisioningDryRun  bool `mapstructure:"provisioning_dryrun"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:                8080,
		Host:                "0.0.0.0",
		ReadTimeout:         30,
		WriteTimeout:        30,
		IdleTimeout:         120,
		LinboDir:            "/srv/linbo",
		LinboServerIP:       "127.0.0.1",
		WebPort:             "80",
		RedisAddr:           "localhost:6379",
		SyncIntervalSeconds: 300,
		ProvisioningEnabled: false,
		ProvisioningDryRun:  true,
	}
}

var rootCmd = &cobra.Command{
	Use:   "linbo-dc",
	Short: "LINBO fleet control-plane core",
	Long:  "A control-plane service that synchronizes LINBO/PXE boot artifacts from an upstream inventory authority",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the control-plane server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("read-timeout", 30, "Read timeout in seconds")
	serveCmd.Flags().Int("write-timeout", 30, "Write timeout in seconds")
	serveCmd.Flags().Int("idle-timeout", 120, "Idle timeout in seconds")

	serveCmd.Flags().String("linbo-dir", "/srv/linbo", "LINBO root directory")
	serveCmd.Flags().String("linbo-server-ip", "127.0.0.1", "LINBO server IP advertised to clients")
	serveCmd.Flags().String("web-port", "80", "Web port advertised in GRUB's HTTP fallback")

	serveCmd.Flags().String("redis-addr", "localhost:6379", "Redis address")

	serveCmd.Flags().String("upstream-url", "", "Upstream inventory authority base URL (HTTP mode)")
	serveCmd.Flags().String("local-yaml", "", "Local YAML inventory file (offline/dev mode)")

	serveCmd.Flags().Int("sync-interval-seconds", 300, "Seconds between sync passes")
	serveCmd.Flags().Bool("provisioning-enabled", false, "Enable provision_host job execution")
	serveCmd.Flags().Bool("provisioning-dryrun", true, "Log provision_host actions instead of executing them")

	viper.BindPFlags(serveCmd.Flags()) //nolint:errcheck

	rootCmd.AddCommand(serveCmd)
}

func main() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/linbo-dc/")
	viper.AddConfigPath("$HOME/.linbo-dc")

	viper.SetEnvPrefix("LINBO_DC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("Error reading config file: %v", err)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func runServe(cmd *cobra.Command, args []string) error { //nolint:revive
	config := DefaultConfig()
	if err := viper.Unmarshal(&config); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Printf("Starting linbo-dc with configuration:")
	log.Printf("  Server: %s:%d", config.Host, config.Port)
	log.Printf("  LINBO_DIR: %s", config.LinboDir)
	log.Printf("  Sync interval: %ds", config.SyncIntervalSeconds)

	rdb := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
	st := store.New(rdb)

	rt := runtime.New(runtime.Env{
		LinboDir:            config.LinboDir,
		LinboServerIP:       config.LinboServerIP,
		LinboSubnet:         os.Getenv("LINBO_SUBNET"),
		LinboNetmask:        os.Getenv("LINBO_NETMASK"),
		LinboGateway:        os.Getenv("LINBO_GATEWAY"),
		LinboDNS:            os.Getenv("LINBO_DNS"),
		LinboDomain:         os.Getenv("LINBO_DOMAIN"),
		WebPort:             config.WebPort,
		ConfigDir:           os.Getenv("CONFIG_DIR"),
		PatchclassBase:      os.Getenv("PATCHCLASS_BASE"),
		ImageDir:            os.Getenv("IMAGE_DIR"),
		ProvisioningEnabled: config.ProvisioningEnabled,
		ProvisioningDryRun:  config.ProvisioningDryRun,
		CSVCol0Source:       os.Getenv("CSV_COL0_SOURCE"),
		APIURL:              config.UpstreamURL,
		SyncInterval:        fmt.Sprint(config.SyncIntervalSeconds),
	})
	bus := rt.Bus

	var authority upstream.Authority
	if config.UpstreamURL != "" {
		hcfg := upstream.DefaultHTTPConfig()
		hcfg.BaseURL = config.UpstreamURL
		authority = upstream.NewHTTPAuthority(hcfg, log.New(os.Stdout, "upstream: ", log.LstdFlags))
	} else {
		localLogger := log.New(os.Stdout, "upstream-local: ", log.LstdFlags)
		localAuth, err := upstream.NewLocalAuthority(config.LocalYAML, true, localLogger)
		if err != nil {
			return fmt.Errorf("initializing local inventory provider: %w", err)
		}
		authority = localAuth
	}

	grubGenerator := grubgen.New(grubgen.Config{
		LinboDir:      config.LinboDir,
		LinboServerIP: config.LinboServerIP,
		WebPort:       config.WebPort,
	}, log.New(os.Stdout, "grubgen: ", log.LstdFlags))

	syncEngine := sync.New(sync.Deps{
		Upstream:    authority,
		Store:       st,
		GrubGen:     grubGenerator,
		LinboDir:    config.LinboDir,
		LocalServer: config.LinboServerIP,
		NetSettings: dhcpgen.NetworkSettings{ServerIP: config.LinboServerIP},
		Logger:      log.New(os.Stdout, "sync: ", log.LstdFlags),
	})

	settingsResolver := settings.New(st, bus)
	themeManager := theme.NewManager(config.LinboDir)
	reconciler := scanreconciler.New(st, bus)
	orch := orchestrator.New(st, bus, orchestrator.SSHConfig{User: "linbo"}, config.LinboDir)

	jobQueue, err := jobstream.New(context.Background(), rdb, hostIdentity())
	if err != nil {
		return fmt.Errorf("initializing job stream: %w", err)
	}
	worker := jobstream.NewWorker(
		jobQueue, bus, log.New(os.Stdout, "jobstream: ", log.LstdFlags),
		jobstream.ProvisioningConfig{Enabled: config.ProvisioningEnabled, DryRun: config.ProvisioningDryRun},
		nil, nil,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runSyncLoop(ctx, syncEngine, time.Duration(config.SyncIntervalSeconds)*time.Second)
	go runReconcilerLoop(ctx, reconciler, st)
	go runJobWorkerLoop(ctx, worker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(config.ReadTimeout) * time.Second))

	r.Get("/health", healthHandler(authority))
	r.Get("/events", eventsHandler(bus))
	r.Get("/settings", settingsHandler(settingsResolver))
	r.Post("/sync", syncHandler(syncEngine))
	r.Get("/linbo/update/status", updateStatusHandler(st))
	r.Get("/operations", operationsHandler(orch))
	r.Put("/theme", themeHandler(themeManager))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(config.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(config.IdleTimeout) * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		cancel()
	}()

	log.Printf("Server starting on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	<-ctx.Done()
	log.Println("Server stopped")
	return nil
}

func hostIdentity() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "linbo-dc-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return h
}

func runSyncLoop(ctx context.Context, engine *sync.Engine, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := engine.Run(ctx); err != nil {
			log.Printf("sync: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func runReconcilerLoop(ctx context.Context, r *scanreconciler.Reconciler, st *store.Store) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.SweepStale(ctx, scanreconciler.DefaultTimeoutSeconds, time.Now()); err != nil {
				log.Printf("scanreconciler: %v", err)
			}
		}
	}
}

func runJobWorkerLoop(ctx context.Context, w *jobstream.Worker) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		processed, err := w.ProcessOne(ctx)
		if err != nil {
			log.Printf("jobstream worker: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if !processed {
			time.Sleep(time.Second)
		}
	}
}

func healthHandler(authority upstream.Authority) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) { //nolint:revive
		ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
		defer cancel()
		status := "ok"
		if err := authority.CheckHealth(ctx); err != nil {
			status = "degraded"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status, "service": "linbo-dc"})
	}
}

func eventsHandler(bus *eventbus.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) { //nolint:revive
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		topic := req.URL.Query().Get("topic")
		if topic == "" {
			topic = eventbus.TopicHostStatusChanged
		}
		ch := bus.Subscribe(topic)

		for {
			select {
			case <-req.Context().Done():
				return
			case ev := <-ch:
				data, err := json.Marshal(ev.Payload)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Topic, data)
				flusher.Flush()
			}
		}
	}
}

func syncHandler(engine *sync.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		result, err := engine.Run(req.Context())
		if err != nil {
			if errors.Is(err, store.ErrAlreadyRunning) {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	}
}

func updateStatusHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		record, err := st.HGetAll(req.Context(), linboupdate.StatusKey)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(record)
	}
}

func settingsHandler(resolver *settings.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		rows, err := resolver.GetAll(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rows)
	}
}

func operationsHandler(orch *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ops, err := orch.ListOperations(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ops)
	}
}

func themeHandler(mgr *theme.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var cfg model.ThemeConfig
		if err := json.NewDecoder(req.Body).Decode(&cfg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := mgr.UpdateThemeConfig(cfg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func validateConfig(config Config) error {
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("invalid port: %d", config.Port)
	}
	if config.UpstreamURL == "" && config.LocalYAML == "" {
		return fmt.Errorf("either upstream-url or local-yaml must be set")
	}
	return nil
}
