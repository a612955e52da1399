package main

import (
	"os"

	"github.com/spf13/cobra"

	"legacymod/internal/config"
	"legacymod/internal/export"
	"legacymod/internal/graph"
	"legacymod/internal/graphstore"
)

var (
	exportProjectRoot string
	exportDatabase    string
	exportOutPath     string
)

var exportCSVCmd = &cobra.Command{
	Use:   "export-csv",
	Short: "Export the analyzed graph as CSV",
	RunE:  runExportCSV,
}

var exportJSONCmd = &cobra.Command{
	Use:   "export-json",
	Short: "Export the analyzed graph as JSON",
	RunE:  runExportJSON,
}

func init() {
	for _, c := range []*cobra.Command{exportCSVCmd, exportJSONCmd} {
		c.Flags().StringVar(&exportProjectRoot, "project", "", "project root (required)")
		c.Flags().StringVar(&exportDatabase, "database", "", "graph database path override")
		c.Flags().StringVar(&exportOutPath, "out", "", "output file (default stdout)")
		c.MarkFlagRequired("project")
	}
}

func openExportStore() (*graphstore.Store, error) {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return nil, err
	}
	dbPath := cfg.Project.DatabasePath
	if exportDatabase != "" {
		dbPath = exportDatabase
	}
	registry := graph.NewRegistry()
	return graphstore.Open(resolveUnderRoot(exportProjectRoot, dbPath), registry)
}

func exportOutput() (*os.File, func(), error) {
	if exportOutPath == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(exportOutPath)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func runExportCSV(cmd *cobra.Command, args []string) error {
	store, err := openExportStore()
	if err != nil {
		return err
	}
	defer store.Close()

	out, closeOut, err := exportOutput()
	if err != nil {
		return err
	}
	defer closeOut()

	return export.WriteCSV(out, store)
}

func runExportJSON(cmd *cobra.Command, args []string) error {
	store, err := openExportStore()
	if err != nil {
		return err
	}
	defer store.Close()

	out, closeOut, err := exportOutput()
	if err != nil {
		return err
	}
	defer closeOut()

	return export.WriteJSON(out, store)
}
