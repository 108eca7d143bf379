package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/ontodb/ontosync/internal/store"
	"github.com/ontodb/ontosync/internal/ui"
)

var dbCmd = &cobra.Command{
	Use:     "db",
	GroupID: "data",
	Short:   "Manage the ontology store database",
	Long: `Manage the database behind the ontology store.

The store is a local SQLite file by default, or a PostgreSQL database when
store.dsn is a postgres:// URL.`,
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the store and its schema",
	Long: `Create the store database and its schema if they do not exist yet.

Running init is optional; sync creates the schema on first use. It exists
so deployments can prepare the database ahead of the first sync.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		logger := newLogger(cfg, "[ontosync] ")
		st, err := openStore(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		driver := cfg.Store.Driver
		if driver == "" {
			driver = store.DetectDriver(cfg.Store.DSN)
		}
		fmt.Printf("%s Store initialized\n", ui.RenderPass("✓"))
		fmt.Printf("   Driver: %s\n", driver)
		fmt.Printf("   DSN: %s\n", cfg.Store.DSN)
	},
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all synced data from the store",
	Long: `Delete every term, relationship, cross-reference, and execution record.

The schema stays in place, so the next sync starts from an empty store.
Asks for confirmation unless --force is given.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		force, _ := cmd.Flags().GetBool("force")
		if !force {
			var confirmed bool
			prompt := huh.NewConfirm().
				Title(fmt.Sprintf("Reset store %s?", cfg.Store.DSN)).
				Description("This deletes every term, relationship, cross-reference, and execution record.").
				Affirmative("Reset").
				Negative("Cancel").
				Value(&confirmed)
			if err := prompt.Run(); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					fmt.Println("Reset cancelled")
					return
				}
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if !confirmed {
				fmt.Println("Reset cancelled")
				return
			}
		}

		logger := newLogger(cfg, "[ontosync] ")
		st, err := openStore(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		if err := st.Reset(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Error resetting store: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Store reset: %s\n", ui.RenderPass("✓"), cfg.Store.DSN)
	},
}

func init() {
	dbResetCmd.Flags().BoolP("force", "f", false, "Skip the confirmation prompt")

	dbCmd.AddCommand(dbInitCmd)
	dbCmd.AddCommand(dbResetCmd)
	rootCmd.AddCommand(dbCmd)
}
