package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/bookshelf/pkg/config"
)

// fakeSystem records commands instead of running them and writes units to a
// temporary directory.
func fakeSystem(t *testing.T) *[]string {
	t.Helper()

	var calls []string
	origUnitDir, origRun, origRoot := unitDir, runCommand, requireRoot
	unitDir = t.TempDir()
	runCommand = func(command string, args ...string) error {
		calls = append(calls, command+" "+strings.Join(args, " "))
		return nil
	}
	requireRoot = func() error { return nil }
	t.Cleanup(func() {
		unitDir, runCommand, requireRoot = origUnitDir, origRun, origRoot
	})
	return &calls
}

func TestRenderSystemdUnit(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = "/var/lib/bookshelf"
	cfg.Storage.Backend = config.BackendSnapshot

	unit := renderSystemdUnit(cfg, "/etc/bookshelf/config.yaml", "library")

	assert.Contains(t, unit, "User=library")
	assert.Contains(t, unit, "Group=library")
	assert.Contains(t, unit, "ExecStart=/usr/local/bin/bookshelf serve --config /etc/bookshelf/config.yaml")
	assert.Contains(t, unit, "ReadWritePaths=/var/lib/bookshelf\n")
	assert.Contains(t, unit, "ReadWritePaths=/etc/bookshelf\n")

	cfg.Storage.Backend = config.BackendPostgres
	unit = renderSystemdUnit(cfg, "/etc/bookshelf/config.yaml", "library")
	assert.NotContains(t, unit, "ReadWritePaths=/var/lib/bookshelf")
}

func TestJournalArgs(t *testing.T) {
	assert.Equal(t, []string{"-u", serviceName}, journalArgs(false, 0))
	assert.Equal(t, []string{"-u", serviceName, "-f", "-n50"}, journalArgs(true, 50))
}

func TestServiceInstallAndUninstall(t *testing.T) {
	calls := fakeSystem(t)
	configPath := setupCLI(t)

	out, err := run(t, context.Background(), "service", "install", "--config", configPath, "--port", "9300", "--start=false")
	require.NoError(t, err)
	assert.Contains(t, out, "enabled")
	assert.Equal(t, []string{"systemctl daemon-reload", "systemctl enable " + serviceName}, *calls)

	unit, err := os.ReadFile(filepath.Join(unitDir, serviceName))
	require.NoError(t, err)
	assert.Contains(t, string(unit), "--config "+configPath)

	cfg, err := config.LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, 9300, cfg.Port)

	*calls = nil
	_, err = run(t, context.Background(), "service", "uninstall", "--config", configPath)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(unitDir, serviceName))
	assert.Equal(t, []string{
		"systemctl stop " + serviceName,
		"systemctl disable " + serviceName,
		"systemctl daemon-reload",
	}, *calls)
}

func TestServiceRequiresRoot(t *testing.T) {
	fakeSystem(t)
	requireRoot = func() error { return errors.New("this command requires root privileges") }
	configPath := setupCLI(t)

	_, err := run(t, context.Background(), "service", "install", "--config", configPath)
	assert.ErrorContains(t, err, "root privileges")
}

func TestServiceSystemctlForwarding(t *testing.T) {
	calls := fakeSystem(t)
	configPath := setupCLI(t)

	for _, action := range []string{"start", "stop", "restart", "status"} {
		_, err := run(t, context.Background(), "service", action, "--config", configPath)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{
		"systemctl start " + serviceName,
		"systemctl stop " + serviceName,
		"systemctl restart " + serviceName,
		"systemctl status " + serviceName,
	}, *calls)
}
