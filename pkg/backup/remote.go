package backup

import (
	"context"
	"fmt"
	"time"
)

// KeyPrefix starts every backup object key
const KeyPrefix = "servers-"

// ObjectStore is where sealed backups live
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Latest returns the newest key with the prefix
	Latest(ctx context.Context, prefix string) (string, error)
}

// Push seals p and stores it under a timestamped key, which it returns
func Push(ctx context.Context, store ObjectStore, p Payload, password string, now time.Time) (string, error) {
	data, err := Seal(p, password)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s%s.enc", KeyPrefix, now.UTC().Format("20060102-150405"))
	if err := store.Put(ctx, key, data); err != nil {
		return "", fmt.Errorf("failed to upload backup: %w", err)
	}
	return key, nil
}

// Pull fetches and opens the newest backup
func Pull(ctx context.Context, store ObjectStore, password string) (Payload, string, error) {
	key, err := store.Latest(ctx, KeyPrefix)
	if err != nil {
		return Payload{}, "", err
	}
	data, err := store.Get(ctx, key)
	if err != nil {
		return Payload{}, key, fmt.Errorf("failed to download backup: %w", err)
	}
	p, err := Open(data, password)
	return p, key, err
}
