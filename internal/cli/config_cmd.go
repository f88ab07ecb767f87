package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/korasi/korasi/internal/config"
	"github.com/korasi/korasi/internal/errors"
	"github.com/korasi/korasi/internal/ui"
)

// configInitPath picks where config init writes: --config, the global
// file with --global, or .korasi.yaml in the current directory.
func configInitPath(global bool) (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	if !global {
		return config.ConfigFileName, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Can't find your home directory",
			"Pass --config to choose where the file goes.")
	}
	return filepath.Join(home, config.GlobalConfigDir, config.GlobalConfigFile), nil
}

func configInitCommand(force, global bool, out io.Writer) error {
	path, err := configInitPath(global)
	if err != nil {
		return err
	}
	if err := config.WriteDefault(path, config.DefaultConfig(), force); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't write %s", path),
			"Use --force to replace an existing file.")
	}
	fmt.Fprintf(out, "%s Wrote %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), path)
	return nil
}

// configSetCommand sets one dotted key and checks the result still
// validates.
func configSetCommand(key, value string, out io.Writer) error {
	path, err := config.Find(cfgFile)
	if err != nil {
		return err
	}
	if path == "" {
		return errors.New(errors.ErrConfig,
			"No config file found",
			"Run 'korasi config init' first.")
	}

	if err := config.SetValue(path, key, value); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't set %s in %s", key, path), "")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("%s now holds an invalid value for %s", path, key),
			fmt.Sprintf("Run 'korasi config set %s <value>' again with a valid value.", key))
	}

	fmt.Fprintf(out, "%s %s = %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), key, value)
	return nil
}
