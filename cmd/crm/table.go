package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/acksell/crm"
	"github.com/acksell/crm/config"
)

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Manage the DynamoDB table",
}

var tableCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the table and its GSI with on-demand billing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireDynamoDB(); err != nil {
			return err
		}
		awsCfg, err := loadAWS(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if err := newDynamoClient(cfg, awsCfg).CreateTable(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created table %s\n", cfg.Store.Table)
		return nil
	},
}

var tableVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that the table matches the expected key schema and GSI",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireDynamoDB(); err != nil {
			return err
		}
		awsCfg, err := loadAWS(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if err := newDynamoClient(cfg, awsCfg).Verify(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "table %s ok\n", cfg.Store.Table)
		return nil
	},
}

var tableSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the table layout as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(crm.Layout(cfg.Store.Table)); err != nil {
			return fmt.Errorf("encode schema: %w", err)
		}
		return enc.Close()
	},
}

func requireDynamoDB() error {
	if cfg.Store.Driver != config.DriverDynamoDB {
		return fmt.Errorf("store driver is %q, table commands need %q (set store.driver or CRM_STORE_DRIVER)", cfg.Store.Driver, config.DriverDynamoDB)
	}
	return nil
}

func init() {
	tableCmd.AddCommand(tableCreateCmd, tableVerifyCmd, tableSchemaCmd)
	rootCmd.AddCommand(tableCmd)
}
