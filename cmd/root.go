package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/kozaktomas/add-me-in/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "add-me-in",
	Short: "A web app that adds a missing person into a group photo using AI",
	Long: `Add Me In is a small web application. Upload a group photo and a photo
of the person who missed it, and an image-editing model (Gemini or OpenAI)
composes them into one picture that you can refine and download.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.Load().LogLevel,
	})))
}
