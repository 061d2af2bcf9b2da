package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/newdoli/dolisync/pkg/config"
	"github.com/newdoli/dolisync/pkg/settings"
	"github.com/newdoli/dolisync/pkg/store"
)

var configValueType string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage persisted settings",
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store one setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every stored setting",
	RunE:  runConfigList,
}

var configInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Write a starter configuration file",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigInit,
}

func init() {
	configSetCmd.Flags().StringVar(&configValueType, "type", store.TypeString,
		"value type (string, number, boolean, json)")

	configCmd.AddCommand(configGetCmd, configSetCmd, configListCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	value := a.settings.Get(ctx, args[0], nil)
	if value == nil {
		return fmt.Errorf("no setting named %q", args[0])
	}

	fmt.Println(value)

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	ctx := context.Background()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	// The server URL gets validated and normalized on its way in.
	if key == settings.KeyServerURL {
		if err := a.settings.SetServerURL(ctx, value); err != nil {
			return err
		}

		fmt.Printf("%s = %s\n", key, a.settings.ServerURL(ctx))

		return nil
	}

	if err := a.settings.Set(ctx, key, value, configValueType, ""); err != nil {
		return err
	}

	fmt.Printf("%s = %s\n", key, value)

	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := args[0]

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	fmt.Printf("Wrote %s\n", path)

	return nil
}

func runConfigList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	all, err := a.settings.All(ctx)
	if err != nil {
		return err
	}

	for _, cfg := range all {
		value := cfg.Value

		// Never print the stored credential.
		if cfg.Key == settings.KeyToken {
			value = "<redacted>"
		}

		fmt.Printf("%-20s %-8s %s\n", cfg.Key, cfg.Type, value)
	}

	return nil
}
