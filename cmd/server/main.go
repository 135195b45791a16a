package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	englishbuddy "github.com/MegaGrindStone/english-buddy"
	"github.com/MegaGrindStone/english-buddy/internal/handlers"
	"github.com/MegaGrindStone/english-buddy/internal/services"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configFlag string
	portFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "englishbuddy-server",
	Short: "Serve the English Adventure Buddy chat",
	Long: `englishbuddy-server serves the chat page and relays every conversation to the
configured LLM provider, streaming the reply back to the browser.

The config file is read from <user config dir>/englishbuddy/config.yaml unless --config
is given. Without a config file the server talks to Anthropic using ANTHROPIC_API_KEY,
which may also be set in a .env file in the working directory.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(_ *cobra.Command, _ []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "", "Path to the config file")
	rootCmd.Flags().StringVarP(&portFlag, "port", "p", "", "Port to listen on, overrides the config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultConfigPath() (string, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("error getting user config dir: %w", err)
	}
	return filepath.Join(cfgDir, "englishbuddy", "config.yaml"), nil
}

func run() error {
	// A missing .env file is fine, the environment may already carry the credentials.
	_ = godotenv.Load()

	cfgPath := configFlag
	if cfgPath == "" {
		p, err := defaultConfigPath()
		if err != nil {
			return err
		}
		cfgPath = p
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	if portFlag != "" {
		cfg.Port = portFlag
	}

	level, err := cfg.logLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	llm, err := cfg.LLM.llm(services.SystemPrompt, logger)
	if err != nil {
		return fmt.Errorf("error creating llm: %w", err)
	}

	m, err := handlers.NewMain(llm, cfg.page(), logger)
	if err != nil {
		return err
	}

	// Serve static files
	staticFS, err := fs.Sub(englishbuddy.StaticFS, "static")
	if err != nil {
		return err
	}
	fileServer := http.FileServer(http.FS(staticFS))

	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/api/chat", m.HandleChat)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port), slog.String("config", cfgPath))
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("err", err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String("err", err.Error()))
			}
		}
	}
	return nil
}
