package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/99minutos/admin-backend/internal/core/ports"
)

// SeedSettings writes every non-empty value that differs from what the store
// holds. Empty values leave the stored setting alone.
func SeedSettings(ctx context.Context, store ports.SettingsStore, values map[string]string, log zerolog.Logger) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := values[key]
		if value == "" {
			continue
		}
		current, ok, err := store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("seed setting %s: %w", key, err)
		}
		if ok && current == value {
			continue
		}
		if err := store.Set(ctx, key, value); err != nil {
			return err
		}
		log.Info().Str("key", key).Bool("replaced", ok).Msg("setting seeded")
	}
	return nil
}
