package metadata

import (
	"context"
)

// Well-known keys.
const (
	KeyEnabled        = "enabled"
	KeyCurrentChild   = "current_child_id"
	KeyRoster         = "roster"
	KeyDeviceToken    = "device_token"
	KeyLastCheckAt    = "last_check_at"
	KeyHomeTimezone   = "home_timezone"
	KeyLastActivityAt = "last_activity_at"
)

// Repository is a byte-valued key/value store. Get returns (nil, nil) for a
// missing key; Delete of a missing key is not an error.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
