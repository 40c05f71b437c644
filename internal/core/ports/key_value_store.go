package ports

import "context"

// KeyValueStore is the durable local key-value persistence shared by the
// registry (current profile selection) and the session (token, user).
// Writes are last-write-wins.
type KeyValueStore interface {
	// Get returns ok=false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}
