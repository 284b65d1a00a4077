// Package initcmder provides the init command for initializing a local
// .vecstore directory in the current working directory.
package initcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/vecstore/pkg/cliui"
	"github.com/papercomputeco/vecstore/pkg/config"
	"github.com/papercomputeco/vecstore/pkg/dotdir"
)

const (
	configFile = "config.toml"

	remoteTimeout = 15 * time.Second
	maxRemoteSize = 1 << 20
)

const initLongDesc string = `Initialize a new .vecstore/ directory in the current working directory.

Creates a local .vecstore/ directory that takes precedence over the default
~/.vecstore/ directory for configuration and local databases, and writes a
config.toml for the chosen preset. An existing config.toml is left alone.

Presets:
  local       sqlite-vec with an SQLite fallback (default)
  postgres    pgvector with a Postgres fallback and Redis cache
  qdrant      Qdrant with an SQLite fallback and Redis cache
  chroma      Chroma with an SQLite fallback

The preset may also be an http(s) URL of a config.toml to download.

Examples:
  vecstore init
  vecstore init --preset postgres
  vecstore init --preset https://example.com/vecstore/config.toml`

const initShortDesc string = "Initialize a local .vecstore/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.Context(), cmd.OutOrStdout(), preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "Config preset name or URL ("+strings.Join(config.ValidPresetNames(), ", ")+")")

	return cmd
}

func runInit(ctx context.Context, w io.Writer, preset string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Resolve the config before touching the filesystem so a bad preset
	// leaves nothing behind.
	var (
		raw []byte
		cfg *config.Config
		err error
	)
	switch {
	case isURL(preset):
		raw, err = fetchRemote(ctx, preset)
	case preset == "":
		cfg = config.NewDefaultConfig()
	default:
		cfg, err = config.PresetConfig(preset)
	}
	if err != nil {
		return err
	}

	dir, created, err := dotdir.NewManager().InitLocal()
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(w, "  %s Initialized .vecstore directory: %s\n", cliui.SuccessMark, dir)
	} else {
		fmt.Fprintf(w, "  %s Already initialized: %s\n", cliui.DimStyle.Render("●"), dir)
	}

	path := filepath.Join(dir, configFile)
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(w, "  %s Keeping existing %s\n", cliui.DimStyle.Render("●"), path)
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config: %w", err)
	}

	if raw != nil {
		if err := os.WriteFile(path, raw, 0o600); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
	} else {
		cfger, err := config.NewConfiger(dir)
		if err != nil {
			return err
		}
		if err := cfger.SaveConfig(cfg); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "  %s Wrote %s\n", cliui.SuccessMark, cliui.KeyStyle.Render(path))
	return nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// fetchRemote downloads a config.toml and checks that it parses.
func fetchRemote(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating preset request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching preset %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching preset %s: HTTP %d", url, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteSize))
	if err != nil {
		return nil, fmt.Errorf("reading preset: %w", err)
	}

	if _, err := config.ParseConfigTOML(raw); err != nil {
		return nil, fmt.Errorf("remote preset is not a valid config: %w", err)
	}
	return raw, nil
}
