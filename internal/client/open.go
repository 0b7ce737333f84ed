package client

import (
	"fmt"

	"docchat/internal/config"
)

// OpenStore builds the configured client store under the configured namespace.
func OpenStore(cfg config.ClientConfig) (ClientStore, error) {
	var store ClientStore
	switch cfg.Store {
	case "memory":
		store = NewMemoryStore()
	case "dir":
		d, err := NewDirStore(cfg.StoreDir)
		if err != nil {
			return nil, err
		}
		store = d
	case "redis":
		store = NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unknown client store %q", cfg.Store)
	}
	return Namespaced(store, cfg.Namespace), nil
}
