package memory

import (
	"github.com/bioneo/stakeledger/pkg/kv"
)

func init() {
	kv.RegisterBackend(kv.BackendMemory, func(cfg kv.Config) (kv.Store, error) {
		return New(cfg.JanitorInterval), nil
	})
}
