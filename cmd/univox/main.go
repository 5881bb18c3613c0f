package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// Optional .env for local runs; deployment platforms inject real env.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "univox",
		Short: "Telegram relay bot for the Gemini API",
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the liveness server and the Telegram polling loop",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	})
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
