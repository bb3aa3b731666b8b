package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ricardomdn/broll/internal/keystore"
	"github.com/ricardomdn/broll/internal/types"
)

// Keystore entry names, one per external service.
const (
	keyGemini = "gemini"
	keyPexels = "pexels"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage stored API keys",
	}

	set := &cobra.Command{
		Use:   "set <gemini|pexels> <value>",
		Short: "Store an API key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if name != keyGemini && name != keyPexels {
				return fmt.Errorf("unknown service %q (want gemini or pexels)", name)
			}
			store, err := openKeystore()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Set(name, args[1]); err != nil {
				return err
			}
			cmd.Printf("%s key stored\n", name)
			return nil
		},
	}

	get := &cobra.Command{
		Use:   "get <gemini|pexels>",
		Short: "Print a stored API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openKeystore()
			if err != nil {
				return err
			}
			defer store.Close()
			v, err := store.Get(args[0])
			if err != nil {
				return err
			}
			cmd.Println(v)
			return nil
		},
	}

	cmd.AddCommand(set, get)
	return cmd
}

func keystorePath() (string, error) {
	if p := os.Getenv("BROLL_KEYSTORE"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "broll", "keys.db"), nil
}

func openKeystore() (*keystore.Store, error) {
	path, err := keystorePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return keystore.Open(path)
}

// resolveKeys builds the credential pair from, in order: flags, environment,
// keystore. Missing keys are left empty; the pipeline rejects them before
// any network call.
func resolveKeys(geminiFlag, pexelsFlag string) types.APIKeys {
	keys := types.APIKeys{
		Gemini: geminiFlag,
		Pexels: pexelsFlag,
	}
	if keys.Gemini == "" {
		keys.Gemini = os.Getenv("GEMINI_API_KEY")
	}
	if keys.Pexels == "" {
		keys.Pexels = os.Getenv("PEXELS_API_KEY")
	}
	if keys.Gemini != "" && keys.Pexels != "" {
		return keys
	}

	store, err := openKeystore()
	if err != nil {
		return keys
	}
	defer store.Close()
	if keys.Gemini == "" {
		if v, err := store.Get(keyGemini); err == nil {
			keys.Gemini = v
		} else if !errors.Is(err, keystore.ErrNotFound) {
			return keys
		}
	}
	if keys.Pexels == "" {
		if v, err := store.Get(keyPexels); err == nil {
			keys.Pexels = v
		}
	}
	return keys
}
