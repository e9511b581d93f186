package memory

import "github.com/tinoosan/expenses/internal/storage"

// Compile-time interface assertions documenting which interfaces KV satisfies.
var _ storage.KV = (*KV)(nil)
