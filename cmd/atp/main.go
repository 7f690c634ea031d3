package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-atp/internal/db"
	"github.com/joeblew999/plat-atp/internal/logging"
	"github.com/joeblew999/plat-atp/internal/server"
	"github.com/joeblew999/plat-atp/internal/service"
	"github.com/joeblew999/plat-atp/internal/store"
	"github.com/joeblew999/plat-atp/internal/upstream"
)

// Options defines all CLI flags and env vars for the ATP server.
// Flags: --host, --port, --data-dir, --data-url, --store, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_DATA_URL, ...
type Options struct {
	Host        string `doc:"Host to bind to" default:"0.0.0.0"`
	Port        int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir     string `doc:"Directory for persisted state" default:".data"`
	WebDir      string `doc:"Path to web/ directory; embedded templates are used when absent" default:""`
	DataURL     string `doc:"Upstream ATP data API root" default:"https://atp.secoora.org"`
	MediaURL    string `doc:"Upstream species photo listing" default:""`
	Store       string `doc:"State backend: file, badger, redis or memory" default:"file"`
	RedisAddr   string `doc:"Redis address for the redis store" default:"localhost:6379"`
	InventoryDB string `doc:"DuckDB database name under data-dir to read the inventory from" default:""`
	LogLevel    string `doc:"Log level: debug, info, warn, error" default:"info"`
	LogFormat   string `doc:"Log format: text or json" default:"text"`
}

func newServer(opts *Options, logger *slog.Logger) (*server.Server, error) {
	return server.New(server.Config{
		Host:     opts.Host,
		Port:     fmt.Sprintf("%d", opts.Port),
		DataDir:  opts.DataDir,
		WebDir:   opts.WebDir,
		DataURL:  strings.TrimRight(opts.DataURL, "/"),
		MediaURL: opts.MediaURL,
		Store: store.Config{
			Kind:      opts.Store,
			RedisAddr: opts.RedisAddr,
			Prefix:    "atp:",
		},
		InventoryDB: opts.InventoryDB,
		Logger:      logger,
	})
}

func exitOn(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
		os.Exit(1)
	}
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		logger := logging.Setup(opts.LogLevel, opts.LogFormat)
		var (
			srv     *server.Server
			httpSrv *http.Server
			cancel  context.CancelFunc
		)

		hooks.OnStart(func() {
			var err error
			srv, err = newServer(opts, logger)
			exitOn(err, "Error starting server")

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-atp API server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataURL)
			fmt.Printf("  State:   %s (%s)\n", opts.DataDir, opts.Store)
			fmt.Println()
			fmt.Printf("  Editor:  %s/editor\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			srv.Start(ctx)

			httpSrv = &http.Server{Addr: addr, Handler: srv}
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("server error", "error", err)
			}
		})

		hooks.OnStop(func() {
			if httpSrv != nil {
				ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
				defer done()
				httpSrv.Shutdown(ctx)
			}
			if cancel != nil {
				cancel()
			}
			if srv != nil {
				srv.Close()
			}
		})
	})

	cli.Root().Use = "atp"
	cli.Root().Short = "Species layer stack service for the animal telemetry viewer"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			opts.Store = "memory"
			srv, err := newServer(opts, logging.Discard())
			exitOn(err, "Error creating server")
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			exitOn(err, "Error marshaling spec")
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// inventory subcommand: fill the DuckDB inventory table
	inventoryCmd := &cobra.Command{
		Use:   "inventory [file]",
		Short: "Load the inventory into DuckDB from the data API, or from a CSV/Parquet file",
		Args:  cobra.MaximumNArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			logger := logging.Setup(opts.LogLevel, opts.LogFormat)
			name := opts.InventoryDB
			if name == "" {
				name = "inventory"
			}
			conn, err := db.Get(db.Config{DataDir: opts.DataDir, DBName: name, Extensions: []string{"parquet"}})
			exitOn(err, "Error opening database")
			defer db.Close()

			ctx := cmd.Context()
			if len(args) == 1 {
				n, err := db.ImportFile(ctx, conn, args[0])
				exitOn(err, "Error importing inventory")
				logger.Info("inventory imported", "file", args[0], "rows", n)
				return
			}

			client := upstream.New(upstream.Config{BaseURL: strings.TrimRight(opts.DataURL, "/"), Logger: logger})
			inv, err := client.Inventory(ctx)
			exitOn(err, "Error fetching inventory")
			n, err := db.ReplaceRows(ctx, conn, inv.Rows())
			exitOn(err, "Error storing inventory")
			logger.Info("inventory synced", "species", inv.Len(), "rows", n)
		}),
	}
	cli.Root().AddCommand(inventoryCmd)

	// palettes subcommand: list the palette table
	palettesCmd := &cobra.Command{
		Use:   "palettes",
		Short: "List the layer palettes",
		Run: func(cmd *cobra.Command, args []string) {
			p := service.DefaultPalettes()
			for _, name := range p.Names() {
				pal, _ := p.Get(name)
				fmt.Printf("%-10s %s\n", name, strings.Join(pal.Stops, " "))
			}
		},
	}
	cli.Root().AddCommand(palettesCmd)

	cli.Run()
}
