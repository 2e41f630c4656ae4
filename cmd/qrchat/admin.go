package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/qrchat/internal/config"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin credential commands",
	}

	cmd.AddCommand(newAdminSetKeyCmd())
	return cmd
}

func newAdminSetKeyCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "set-key",
		Short: "Set the admin API key",
		Long:  "Prompts for a new admin key (without echo on a terminal) and writes it to the config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminSetKey(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "qrchat.yaml", "path to QRChat config file")
	return cmd
}

func runAdminSetKey(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	key, err := readKey(cmd)
	if err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("admin key must not be empty")
	}

	cfg.Admin.Key = key
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", configPath, err)
	}

	fmt.Fprintf(out, "Admin key updated in %s\n", configPath)
	return nil
}

// readKey prompts for the key without echo when stdin is a terminal, and
// falls back to a plain line read otherwise so piped input works.
func readKey(cmd *cobra.Command) (string, error) {
	out := cmd.OutOrStdout()
	fmt.Fprint(out, "New admin key: ")

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read key: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read key: %w", err)
		}
		return "", fmt.Errorf("no input")
	}
	return strings.TrimSpace(scanner.Text()), nil
}
