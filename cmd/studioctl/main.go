package main

import (
	"fmt"
	"os"

	"stylestudioapi/config"
	"stylestudioapi/dbhelper"
	"stylestudioapi/logger"
	"stylestudioapi/services"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	// Global flags
	configPath string
	verbose    bool

	appLog *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "studioctl",
	Short: "Operate the style studio backend",
	Long: `studioctl inspects and repairs style studio data.

It reads the same config file and environment as the API and the worker.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		mode := "production"
		if verbose {
			mode = "development"
		}
		log, err := logger.New(mode)
		if err != nil {
			return err
		}
		appLog = log
		return nil
	},
}

// openStore connects to the configured database.
func openStore() (*config.Config, *gorm.DB, *services.GormCatalogueStore, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := dbhelper.SetupDB(cfg.Database)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, db, services.NewCatalogueStore(db, appLog), nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", services.GetEnv("CONFIG_PATH", "config.yaml"), "Config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	catalogueCmd.AddCommand(catalogueShowCmd)
	catalogueCmd.AddCommand(catalogueResetCmd)
	batchCmd.AddCommand(batchRequeueCmd)

	rootCmd.AddCommand(combosCmd)
	rootCmd.AddCommand(catalogueCmd)
	rootCmd.AddCommand(batchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
