package store

import "github.com/GabrielBalbine/ProjetoSistemasDistribuidos/pkg/store"

// Compile-time interface checks for the gateway implementations.
var (
	_ store.Gateway = (*RedisGateway)(nil)
	_ store.Gateway = (*FileGateway)(nil)
	_ store.Gateway = (*MemoryGateway)(nil)
)
