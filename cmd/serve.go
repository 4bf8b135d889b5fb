package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozaktomas/add-me-in/internal/ai"
	"github.com/kozaktomas/add-me-in/internal/config"
	"github.com/kozaktomas/add-me-in/internal/constants"
	"github.com/kozaktomas/add-me-in/internal/web"
	"github.com/spf13/cobra"
)

const defaultHost = "0.0.0.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Add Me In web server.
The web server provides a browser page for uploading the two photos,
generating the combined picture, refining it and downloading the result.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", defaultHost, "Host to bind to")
	serveCmd.Flags().String("session-secret", "", "Secret for signing session cookies (defaults to random)")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
// Flags given on the command line win over the environment.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) (int, string, string) {
	port := cfg.Web.Port
	host := cfg.Web.Host
	sessionSecret := cfg.Web.SessionSecret

	if cmd.Flags().Changed("port") {
		port = mustGetInt(cmd, "port")
	}
	if cmd.Flags().Changed("host") || host == "" {
		host = mustGetString(cmd, "host")
	}
	if cmd.Flags().Changed("session-secret") {
		sessionSecret = mustGetString(cmd, "session-secret")
	}
	return port, host, sessionSecret
}

// newProvider builds the image-editing backend selected by IMAGE_PROVIDER.
func newProvider(ctx context.Context, cfg *config.Config) (ai.Provider, error) {
	if cfg.Credential() == "" {
		return nil, fmt.Errorf("%s environment variable is required", cfg.CredentialEnv())
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return ai.NewOpenAIProvider(cfg.OpenAI.Token), nil
	case config.ProviderGemini:
		model := cfg.Gemini.Model
		if model == "" {
			model = ai.DefaultGeminiModel
		}
		pricing := cfg.GetModelPricing(model).Standard
		provider, err := ai.NewGeminiProvider(ctx, cfg.Gemini.APIKey, model, ai.RequestPricing{
			Input:  pricing.Input,
			Output: pricing.Output,
		})
		if err != nil {
			return nil, fmt.Errorf("creating Gemini client: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unknown IMAGE_PROVIDER %q (expected %q or %q)",
			cfg.Provider, config.ProviderGemini, config.ProviderOpenAI)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return err
	}
	slog.Info("Image provider ready", "provider", cfg.Provider, "model", provider.Name())

	port, host, sessionSecret := resolveServeHostPort(cmd, cfg)
	server := web.NewServer(cfg, provider, port, host, sessionSecret)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Error during shutdown", "error", err)
		}
		if usage := provider.GetUsage(); usage.InputTokens > 0 || usage.OutputTokens > 0 {
			slog.Info("Model usage",
				"input_tokens", usage.InputTokens,
				"output_tokens", usage.OutputTokens,
				"cost_usd", fmt.Sprintf("%.4f", usage.TotalCost))
		}
	}()

	fmt.Printf("Starting Add Me In on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	<-done
	return nil
}
