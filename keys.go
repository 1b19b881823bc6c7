package beacon

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Names of the persisted values. Every key is stored as <namespace>:<name>.
const (
	keyNextIndex   = "next_index"
	keyEventList   = "event_list"
	keyLogList     = "log_list"
	keyUserTag     = "user_tag"
	keyDeviceTag   = "device_tag"
	keyLastDAUTime = "last_dau_time"
	keyInstallTime = "install_time"
	keyBaseURL     = "base_url"
)

// DefaultNamespace prefixes every key written by a client.
const DefaultNamespace = "beacon"

// keyspace builds namespaced storage keys.
// Format: <namespace>:<name>
type keyspace string

func (ks keyspace) key(name string) string {
	return string(ks) + ":" + name
}

// readError is a storage read that failed, as opposed to a stored value
// that could not be decoded. State behind a readError is unknown and must
// not be overwritten.
type readError struct {
	key string
	err error
}

func (e *readError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.key, e.err)
}

func (e *readError) Unwrap() error {
	return e.err
}

func isReadError(err error) bool {
	var rerr *readError
	return errors.As(err, &rerr)
}

// loadJSON decodes the value stored under key into v.
// It reports false with a nil error when the key is absent.
func loadJSON(store Storage, key string, v any) (bool, error) {
	data, err := store.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, &readError{key: key, err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// storeJSON encodes v and writes it under key.
func storeJSON(store Storage, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := store.Set(key, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// deleteKey removes key, treating an absent key as success.
func deleteKey(store Storage, key string) error {
	if err := store.Delete(key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
