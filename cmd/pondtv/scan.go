package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/amaumene/pondtv/internal/scanner"
	"github.com/amaumene/pondtv/internal/store"
	"github.com/amaumene/pondtv/internal/utils"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Rebuild the catalog from the media drive and exit",
	Long: `Walk the drive's Movies and TV_Shows directories, merge watch state
from the existing catalog, and write the result back. Useful for checking
what the channel will see without starting playback.

Examples:
  pondtv scan --root /media/usb0
  pondtv scan --root /media/usb0 --log-level debug`,
	RunE: runScan,
}

var (
	scanRoot        string
	scanLogLevel    string
	scanMinFileSize int
)

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVar(&scanRoot, "root", "", "Media drive root (required)")
	scanCmd.Flags().StringVar(&scanLogLevel, "log-level", "info", "Log level")
	scanCmd.Flags().IntVar(&scanMinFileSize, "min-file-size-mb", 50, "Skip videos smaller than this, 0 disables")
	scanCmd.MarkFlagRequired("root")
}

func runScan(cmd *cobra.Command, args []string) error {
	logger := utils.NewLogger(scanLogLevel)

	st := store.New(filepath.Join(scanRoot, catalogFile))
	catalog, err := scanner.New(scanRoot, st, scanMinFileSize, logger).Scan()
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	stats := catalog.Stats()
	fmt.Printf("Catalog:  %s\n", st.Path())
	fmt.Printf("Movies:   %d\n", stats.Movies)
	fmt.Printf("Series:   %d (%d episodes)\n", stats.Series, stats.Episodes)
	fmt.Printf("Unseen:   %d\n", stats.Unseen)
	return nil
}
