package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "pondtv",
	Short: "Offline personal TV channel for an external media drive",
	Long: `pondtv - offline personal TV channel

Scans an attached media drive, keeps a durable catalog of what has been
watched, and plays an endless shuffled channel of unseen content through
mpv. Designed for a box with a TV and no network.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate("pondtv {{.Version}}\n")
}
