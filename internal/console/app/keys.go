package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aussiebroadwan/examadmin/pkg/cryptox"
)

// LoadStoreSealer returns the Sealer for the session file.
//
// Key sources, in order of preference:
//   - EXAMADMIN_STORE_KEY_PATH: read from the file, which is generated with
//     0600 permissions when it does not exist yet
//   - EXAMADMIN_STORE_KEY: the literal value
//
// Losing the key makes the stored session unreadable; the operator simply
// has to log in again.
func LoadStoreSealer(cfg Config, logger *slog.Logger) (*cryptox.Sealer, error) {
	if cfg.StoreKeyPath != "" {
		if err := ensureKeyFile(cfg.StoreKeyPath, logger); err != nil {
			return nil, err
		}
	}
	return cryptox.LoadSealer(cfg.StoreKeyPath, cfg.StoreKey)
}

func ensureKeyFile(path string, logger *slog.Logger) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat store key file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create store key directory: %w", err)
	}

	key, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, os.ErrExist) {
		// Another process created it first.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create store key file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(key + "\n"); err != nil {
		return fmt.Errorf("failed to write store key file: %w", err)
	}

	logger.Info("generated store key", "path", path)
	return nil
}
