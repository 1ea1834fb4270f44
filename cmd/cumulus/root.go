package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cumulus/internal/flags"
)

func newRootCmd(app *appContainer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cumulus",
		Short: "Cumulus is a command-line client for cloud object storage.",
		Long: `A unified client for objects in cloud storage. Upload, download and
inspect objects on GCS, S3 or a local store, manage their metadata and
retry windows, and configure providers from one place.`,
	}

	rootCmd.PersistentFlags().BoolP(flags.Debug, flags.DebugShort, false, "Enable verbose debug logging")

	rootCmd.AddCommand(newStorageCmd(app))
	rootCmd.AddCommand(newConfigCmd(app))

	return rootCmd
}

func Execute(app *appContainer) {
	if err := newRootCmd(app).Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
