package main

import (
	"fmt"

	"salesboard/internal/store/gormstore"

	"github.com/spf13/cobra"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load sales from a YAML file into the backend database",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "seed file (default backend.seed_path)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, logFile, err := loadConfig()
	if err != nil {
		return err
	}
	defer logFile.Close()

	path := seedFile
	if path == "" {
		path = cfg.Backend.SeedPath
	}
	if path == "" {
		return fmt.Errorf("no seed file: pass --file or set backend.seed_path")
	}
	store, err := gormstore.NewGormStore(cfg.Backend.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.SeedFromFile(cmd.Context(), path)
	if err != nil {
		return err
	}
	total, err := store.Count(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "inserted %d sales from %s (%d total)\n", n, path, total)
	return nil
}
