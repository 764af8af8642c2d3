/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ssargent/bookshelf/pkg/config"
)

const serviceName = "bookshelf.service"

// Overridable in tests.
var (
	unitDir    = "/etc/systemd/system"
	binaryPath = "/usr/local/bin/bookshelf"
	runCommand = func(command string, args ...string) error {
		c := exec.Command(command, args...)
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		return c.Run()
	}
	requireRoot = func() error {
		if os.Geteuid() != 0 {
			return errors.New("this command requires root privileges")
		}
		return nil
	}
)

// serviceCmd represents the service command
var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage bookshelf as a systemd service",
	Long: `Manage bookshelf as a systemd service. The unit runs "bookshelf serve"
with the given configuration and restarts on failure.`,
}

// installServiceCmd represents the service install command
var installServiceCmd = &cobra.Command{
	Use:   "install",
	Short: "Install bookshelf as a systemd service",
	Long: `Install bookshelf as a systemd service.

This will:
- Create or update the configuration
- Generate the systemd unit file
- Enable and optionally start the service

Examples:
  bookshelf service install
  bookshelf service install --data-dir /var/lib/bookshelf --backend pebble --user bookshelf`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoot(); err != nil {
			return err
		}

		configPath, _ := cmd.Flags().GetString("config")
		user, _ := cmd.Flags().GetString("user")
		startNow, _ := cmd.Flags().GetBool("start")
		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}

		cfg, err := configFromContext(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port, _ = cmd.Flags().GetInt("port")
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		// Save updated config
		if err := config.SaveConfig(cfg, configPath); err != nil {
			return err
		}
		cmd.Printf("Configuration saved to %s\n", configPath)

		if err := writeSystemdUnit(cfg, configPath, user); err != nil {
			return fmt.Errorf("failed to write systemd unit: %w", err)
		}

		if err := runCommand("systemctl", "daemon-reload"); err != nil {
			return fmt.Errorf("failed to reload systemd: %w", err)
		}
		if err := runCommand("systemctl", "enable", serviceName); err != nil {
			return fmt.Errorf("failed to enable service: %w", err)
		}
		cmd.Printf("Service %s enabled\n", serviceName)

		if startNow {
			if err := runCommand("systemctl", "start", serviceName); err != nil {
				return fmt.Errorf("failed to start service: %w", err)
			}
			cmd.Printf("Service %s started\n", serviceName)
		} else {
			cmd.Printf("To start the service: sudo systemctl start %s\n", serviceName)
		}

		cmd.Printf("Listening on %s, data in %s, storage backend %s\n", cfg.Address(), cfg.DataDir, cfg.Storage.Backend)
		cmd.Printf("To view logs: sudo journalctl -u %s -f\n", serviceName)
		return nil
	},
}

// systemctlCmd builds a service subcommand that forwards to systemctl
func systemctlCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runCommand("systemctl", action, serviceName); err != nil {
				return fmt.Errorf("systemctl %s: %w", action, err)
			}
			return nil
		},
	}
}

// logsCmd represents the service logs command
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show bookshelf service logs",
	Long: `Show bookshelf service logs using journalctl.

Examples:
  bookshelf service logs
  bookshelf service logs -f  # Follow logs`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		follow, _ := cmd.Flags().GetBool("follow")
		lines, _ := cmd.Flags().GetInt("lines")

		return runCommand("journalctl", journalArgs(follow, lines)...)
	},
}

// uninstallCmd represents the service uninstall command
var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall the bookshelf service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoot(); err != nil {
			return err
		}

		_ = runCommand("systemctl", "stop", serviceName) // already stopped is fine
		if err := runCommand("systemctl", "disable", serviceName); err != nil {
			cmd.Printf("Warning: could not disable service: %v\n", err)
		}

		unitPath := filepath.Join(unitDir, serviceName)
		if err := os.Remove(unitPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove unit file: %w", err)
		}

		if err := runCommand("systemctl", "daemon-reload"); err != nil {
			return fmt.Errorf("failed to reload systemd: %w", err)
		}

		cmd.Printf("Service %s uninstalled\n", serviceName)
		cmd.Printf("Note: configuration and data files were not removed\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serviceCmd)

	// Add subcommands
	serviceCmd.AddCommand(installServiceCmd)
	serviceCmd.AddCommand(systemctlCmd("start", "Start the bookshelf service"))
	serviceCmd.AddCommand(systemctlCmd("stop", "Stop the bookshelf service"))
	serviceCmd.AddCommand(systemctlCmd("restart", "Restart the bookshelf service"))
	serviceCmd.AddCommand(systemctlCmd("status", "Show bookshelf service status"))
	serviceCmd.AddCommand(logsCmd)
	serviceCmd.AddCommand(uninstallCmd)

	// Install command flags
	installServiceCmd.Flags().String("user", "bookshelf", "User to run the service as")
	installServiceCmd.Flags().Int("port", 8080, "Port for the service")
	installServiceCmd.Flags().Bool("start", true, "Start the service after installation")

	// Logs command flags
	logsCmd.Flags().BoolP("follow", "f", false, "Follow log output")
	logsCmd.Flags().IntP("lines", "n", 0, "Number of lines to show")
}

func journalArgs(follow bool, lines int) []string {
	args := []string{"-u", serviceName}
	if follow {
		args = append(args, "-f")
	}
	if lines > 0 {
		args = append(args, fmt.Sprintf("-n%d", lines))
	}
	return args
}

// renderSystemdUnit builds the unit file. Only the directories the service
// writes to are made writable.
func renderSystemdUnit(cfg *config.Config, configPath, user string) string {
	var writable []string
	switch cfg.Storage.Backend {
	case config.BackendPebble:
		writable = append(writable, filepath.Dir(cfg.PebblePath()))
	case config.BackendSnapshot:
		writable = append(writable, filepath.Dir(cfg.SnapshotPath()))
	}
	writable = append(writable, filepath.Dir(configPath))

	var rw strings.Builder
	for _, p := range writable {
		fmt.Fprintf(&rw, "ReadWritePaths=%s\n", p)
	}

	return fmt.Sprintf(`[Unit]
Description=Bookshelf book collection API
After=network-online.target
Wants=network-online.target

[Service]
User=%s
Group=%s
ExecStart=%s serve --config %s
Restart=on-failure
NoNewPrivileges=true
ProtectSystem=strict
UMask=0077
%s
[Install]
WantedBy=multi-user.target
`, user, user, binaryPath, configPath, rw.String())
}

func writeSystemdUnit(cfg *config.Config, configPath, user string) error {
	unitPath := filepath.Join(unitDir, serviceName)
	return os.WriteFile(unitPath, []byte(renderSystemdUnit(cfg, configPath, user)), 0600)
}
