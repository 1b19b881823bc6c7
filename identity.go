package beacon

import (
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TokenSource generates the opaque 32-character tokens used for the
// device tag and the session key.
type TokenSource interface {
	NewToken() string
}

// uuidTokens renders random v4 UUIDs as 32 hex characters.
type uuidTokens struct{}

func (uuidTokens) NewToken() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// identityStore owns the device tag, session key, user tag, the event
// index counter and the automatic-event markers.
type identityStore struct {
	store  Storage
	keys   keyspace
	report func(error)

	mu         sync.Mutex
	deviceTag  string
	sessionKey string
	userTag    string
	nextIndex  uint64
}

// loadIdentity reads the persisted identity values. A host-supplied
// device tag replaces the stored one. The session key is fresh for
// every call and never written. Undecodable values are reported and
// replaced; a failed read is returned and nothing is written.
func loadIdentity(store Storage, keys keyspace, tokens TokenSource, hostDeviceTag string, report func(error)) (*identityStore, error) {
	id := &identityStore{
		store:      store,
		keys:       keys,
		report:     report,
		sessionKey: tokens.NewToken(),
	}

	if hostDeviceTag == "" {
		if _, err := id.load(keyDeviceTag, &id.deviceTag); err != nil {
			return nil, err
		}
	}
	if _, err := id.load(keyUserTag, &id.userTag); err != nil {
		return nil, err
	}
	if _, err := id.load(keyNextIndex, &id.nextIndex); err != nil {
		return nil, err
	}

	switch {
	case hostDeviceTag != "":
		id.deviceTag = hostDeviceTag
		id.persist(keyDeviceTag, hostDeviceTag)
	case id.deviceTag == "":
		id.deviceTag = tokens.NewToken()
		id.persist(keyDeviceTag, id.deviceTag)
	}
	return id, nil
}

// load decodes the value stored under name into v. A value that fails to
// decode is reported and treated as absent; only a failed read is returned.
func (id *identityStore) load(name string, v any) (bool, error) {
	found, err := loadJSON(id.store, id.keys.key(name), v)
	if isReadError(err) {
		return false, err
	}
	if err != nil {
		id.report(err)
		return false, nil
	}
	return found, nil
}

func (id *identityStore) persist(name string, v any) {
	if err := storeJSON(id.store, id.keys.key(name), v); err != nil {
		id.report(err)
	}
}

// reconcile moves the counter past the highest index found in the
// loaded event queue, so a lost or stale counter never reissues an index.
func (id *identityStore) reconcile(events []EventRecord) {
	if len(events) == 0 {
		return
	}
	var highest uint64
	for _, ev := range events {
		if ev.EventIndex > highest {
			highest = ev.EventIndex
		}
	}

	id.mu.Lock()
	defer id.mu.Unlock()
	if id.nextIndex > highest {
		return
	}
	id.nextIndex = highest + 1
	id.persist(keyNextIndex, id.nextIndex)
}

// takeIndex returns the next event index and persists the advanced counter.
func (id *identityStore) takeIndex() uint64 {
	id.mu.Lock()
	defer id.mu.Unlock()
	idx := id.nextIndex
	id.nextIndex++
	id.persist(keyNextIndex, id.nextIndex)
	return idx
}

func (id *identityStore) DeviceTag() string {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.deviceTag
}

func (id *identityStore) SessionKey() string {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.sessionKey
}

func (id *identityStore) UserTag() string {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.userTag
}

// setUserTag stores tag, or removes the persisted key when tag is empty.
func (id *identityStore) setUserTag(tag string) error {
	id.mu.Lock()
	defer id.mu.Unlock()
	if tag == "" {
		if err := deleteKey(id.store, id.keys.key(keyUserTag)); err != nil {
			return err
		}
		id.userTag = ""
		return nil
	}
	if err := storeJSON(id.store, id.keys.key(keyUserTag), tag); err != nil {
		return err
	}
	id.userTag = tag
	return nil
}

// installMarked reports whether an install event was ever enqueued.
func (id *identityStore) installMarked() (bool, error) {
	var ms int64
	return id.load(keyInstallTime, &ms)
}

func (id *identityStore) markInstall(t time.Time) {
	id.persist(keyInstallTime, t.UnixMilli())
}

// lastDAU returns the time of the last daily-active event.
func (id *identityStore) lastDAU() (time.Time, bool, error) {
	var ms int64
	found, err := id.load(keyLastDAUTime, &ms)
	if err != nil || !found {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

func (id *identityStore) markDAU(t time.Time) {
	id.persist(keyLastDAUTime, t.UnixMilli())
}

// baseURL returns the persisted collector URL override, if any.
func (id *identityStore) baseURL() string {
	var u string
	if _, err := loadJSON(id.store, id.keys.key(keyBaseURL), &u); err != nil {
		id.report(err)
	}
	return u
}

func (id *identityStore) setBaseURL(u string) error {
	if u == "" {
		return deleteKey(id.store, id.keys.key(keyBaseURL))
	}
	if err := storeJSON(id.store, id.keys.key(keyBaseURL), u); err != nil {
		return fmt.Errorf("set base url: %w", err)
	}
	return nil
}
