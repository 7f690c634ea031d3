package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joeblew999/plat-atp/internal/api"
	"github.com/joeblew999/plat-atp/internal/api/editor"
	"github.com/joeblew999/plat-atp/internal/db"
	"github.com/joeblew999/plat-atp/internal/humastar"
	"github.com/joeblew999/plat-atp/internal/inventory"
	"github.com/joeblew999/plat-atp/internal/logging"
	"github.com/joeblew999/plat-atp/internal/service"
	"github.com/joeblew999/plat-atp/internal/store"
	"github.com/joeblew999/plat-atp/internal/templates"
	"github.com/joeblew999/plat-atp/internal/upstream"
	"github.com/joeblew999/plat-atp/web"
)

// Config holds the server configuration.
type Config struct {
	Host     string
	Port     string
	DataDir  string
	WebDir   string // optional web/ directory; fragments are embedded otherwise
	DataURL  string // upstream data API root
	MediaURL string // upstream photo listing

	Store store.Config

	// InventoryDB names a DuckDB database under DataDir to read the
	// inventory from instead of the data API.
	InventoryDB string

	Logger *slog.Logger
}

// Server is the ATP HTTP server.
type Server struct {
	config   Config
	logger   *slog.Logger
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	store    store.Store
	inv      *inventory.Holder
	db       *sql.DB
	client   *upstream.Client
	services *api.Services
	loader   *service.Loader
	renderer *templates.Renderer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a server with the persisted stack and settings restored.
// Call Start to load the inventory and layer data.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Store.DataDir = cfg.DataDir
	cfg.Store.Logger = logger

	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-atp API", "1.0.0")
	humaConfig.Info.Description = "Species layer stack API: availability-constrained layer editing, shared legend aggregation and hover resolution."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, humastar.LinkTransformer(api.Links))

	humaAPI := humago.New(mux, humaConfig)

	bus := service.NewEventBus()
	holder := &inventory.Holder{}
	stack := service.NewStackService(service.StackConfig{
		Inventory: holder,
		Store:     st,
		Bus:       bus,
		Logger:    logger,
	})
	settings := service.NewSettingsService(st, bus, logger)

	client := upstream.New(upstream.Config{BaseURL: cfg.DataURL, MediaURL: cfg.MediaURL, Logger: logger})

	ctx, cancel := context.WithCancel(context.Background())
	loader := service.NewLoader(ctx, client, stack.Aggregator(), bus, logger)
	stack.SetScheduler(loader)

	s := &Server{
		config:   cfg,
		logger:   logger,
		mux:      mux,
		humaAPI:  humaAPI,
		store:    st,
		inv:      holder,
		client:   client,
		services: &api.Services{Stack: stack, Settings: settings, Reference: client},
		loader:   loader,
		cancel:   cancel,
	}
	s.handler = logging.AccessMiddleware(logger, mux)

	if err := settings.Load(ctx); err != nil {
		logger.Warn("restoring settings", "error", err)
	}
	if err := stack.Load(ctx); err != nil {
		logger.Warn("restoring layer stack", "error", err)
	}

	if cfg.InventoryDB != "" {
		conn, err := db.Get(db.Config{DataDir: cfg.DataDir, DBName: cfg.InventoryDB, Extensions: []string{"parquet"}})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("opening inventory database: %w", err)
		}
		s.db = conn
	}

	s.renderer, err = s.loadRenderer()
	if err != nil {
		s.Close()
		return nil, err
	}

	s.routes()
	return s, nil
}

func (s *Server) loadRenderer() (*templates.Renderer, error) {
	if s.config.WebDir != "" {
		fragmentsDir := filepath.Join(s.config.WebDir, "templates", "fragments")
		if r, err := templates.New(fragmentsDir); err == nil {
			s.logger.Info("loaded fragment templates", "dir", fragmentsDir)
			return r, nil
		}
	}
	return templates.NewFS(web.Fragments())
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Stack returns the layer stack service.
func (s *Server) Stack() *service.StackService {
	return s.services.Stack
}

// Start loads the inventory in the background. Once it arrives the
// restored stack is checked against it and every layer's data is fetched.
func (s *Server) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.RefreshInventory(ctx); err != nil {
			s.logger.Error("loading inventory", "error", err)
		}
	}()
}

// RefreshInventory fetches the inventory, installs it and reconciles the
// stack against it. An inventory that fails validation is not installed.
func (s *Server) RefreshInventory(ctx context.Context) error {
	var (
		inv *inventory.Inventory
		err error
	)
	if s.db != nil {
		inv, err = db.LoadInventory(ctx, s.db)
	} else {
		inv, err = s.client.Inventory(ctx)
	}
	if err != nil {
		return err
	}
	if err := inv.Validate(); err != nil {
		return fmt.Errorf("rejecting inventory: %w", err)
	}

	s.inv.Swap(inv)
	kept, dropped, err := s.services.Stack.Reconcile(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("inventory loaded", "species", inv.Len(), "layers_kept", kept, "layers_dropped", dropped)
	return nil
}

// Close stops background loads and releases resources.
func (s *Server) Close() error {
	s.cancel()
	s.wg.Wait()
	s.loader.Wait()
	if s.db != nil {
		db.Close()
	}
	return s.store.Close()
}

func (s *Server) routes() {
	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(s.services))
	api.NewInfoHandler(s.config.DataURL, storeKind(s.config.Store.Kind), s.db != nil).RegisterRoutes(s.humaAPI)

	// Register Editor SSE routes using Huma + Datastar SDK
	editor.NewLayerHandler(s.services.Stack, s.renderer).RegisterRoutes(s.humaAPI)
	editor.NewEventHandler(s.services.Stack, s.services.Settings, s.renderer).RegisterRoutes(s.humaAPI)

	s.mux.Handle("/metrics", promhttp.Handler())

	// Static files
	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	// Page routes
	s.mux.HandleFunc("/editor", s.handleEditor)
	s.mux.HandleFunc("/", s.handleRoot)
}

func storeKind(k string) string {
	if k == "" {
		return "file"
	}
	return k
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"service":   "plat-atp",
		"status":    "running",
		"inventory": s.inv.Loaded(),
	})
}

func (s *Server) handleEditor(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(web.EditorPage())
}
