package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pickem/internal/config"
	"pickem/internal/logger"
	"pickem/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.NewViper()
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "pickemd",
		Short:         "Pick'em series ledger daemon",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return config.LoadDotEnv()
		},
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "optional config file (yaml, toml or json)")
	rootCmd.PersistentFlags().String("database-path", "", "SQLite database path (DATABASE_PATH)")
	bindFlag(v, rootCmd, "database_path", "database-path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, lock watcher and channel broadcaster",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	serveCmd.Flags().String("port", "", "HTTP port (PORT)")
	bindFlag(v, serveCmd, "port", "port")
	serveCmd.Flags().String("store", "", "store backend: sqlite or memory (STORE_BACKEND)")
	bindFlag(v, serveCmd, "store_backend", "store")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQLite migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configFile != "" {
				v.SetConfigFile(configFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("failed to read config file: %w", err)
				}
			}
			dbPath := v.GetString("database_path")
			store, err := storage.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()
			logger.Info("", "migrations_applied", "database="+dbPath)
			return nil
		},
	}

	rootCmd.AddCommand(serveCmd, migrateCmd)
	return rootCmd
}

func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	f := cmd.Flags().Lookup(flag)
	if f == nil {
		f = cmd.PersistentFlags().Lookup(flag)
	}
	if err := v.BindPFlag(key, f); err != nil {
		panic(err)
	}
}
