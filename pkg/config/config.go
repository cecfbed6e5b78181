package config

import (
	"errors"
	"flag"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

var configFilePath = flag.String("config_file", "config.txtpb", "Path to the configuration file.")

// InitFlags initializes the flags from the config file specified by the -config_file flag.
// It should be called after defining all flags and before using them. Flags given on the command line take
// precedence over the config file.
func InitFlags() {
	flag.Parse()

	if *configFilePath == "" {
		slog.Info("Config file not specified. Skipping config initialization.")
		return
	}

	// Read config file.
	configBytes, err := os.ReadFile(*configFilePath)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("Config file does not exist.", "path", *configFilePath, "error", err)
		return
	}
	if err != nil { // If the config file cannot be read, we skip loading and use default flag values.
		slog.Error("Failed to read config file.", "error", err)
		return
	}

	// Apply configurations.
	conf, err := parseConfig(configBytes)
	if err != nil {
		slog.Error("Failed to parse config file.", "path", *configFilePath, "error", err)
		return
	}
	if err := setConfigFlags(conf, commandLineFlags()); err != nil {
		slog.Error("Failed to set flags from config file.", "error", err)
		return
	}
}

// commandLineFlags returns the names of the flags that were explicitly set on the command line.
func commandLineFlags() map[string]struct{} {
	set := make(map[string]struct{})
	flag.Visit(func(f *flag.Flag) { set[f.Name] = struct{}{} })
	return set
}

// SetTestFlag sets a flag to a specific value for the duration of the test.
func SetTestFlag(t *testing.T, name, value string) {
	t.Helper()
	flagHolder := flag.Lookup(name)
	require.NotNil(t, flagHolder, "Flag %s not found", name)
	if flagHolder != nil { // Revert the flag value back to its original when the test is done.
		prevValue := flagHolder.Value.String()
		t.Cleanup(func() { require.NoError(t, flag.Set(name, prevValue)) })
	}
	require.NoError(t, flag.Set(name, value))
}
