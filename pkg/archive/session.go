package archive

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"
	"gopkg.in/yaml.v3"
)

// Session summarizes one ingest run into the archive
type Session struct {
	ID         string    `yaml:"id"`
	Source     string    `yaml:"source"`
	Started    time.Time `yaml:"started"`
	Finished   time.Time `yaml:"finished,omitempty"`
	Stored     int       `yaml:"stored"`
	Duplicates int       `yaml:"duplicates"`
	Skipped    int       `yaml:"skipped"`
	Channels   []string  `yaml:"channels,omitempty"`
}

// NewSession starts a session for source with a fresh KSUID.
func NewSession(source string) *Session {
	id := ksuid.New()
	return &Session{ID: id.String(), Source: source, Started: id.Time().UTC()}
}

// AddChannel records that name received data, keeping Channels sorted and
// unique.
func (s *Session) AddChannel(name string) {
	i := sort.SearchStrings(s.Channels, name)
	if i < len(s.Channels) && s.Channels[i] == name {
		return
	}
	s.Channels = append(s.Channels, "")
	copy(s.Channels[i+1:], s.Channels[i:])
	s.Channels[i] = name
}

func sessionKey(id ksuid.KSUID) []byte {
	return append([]byte{sessionPrefix}, id.Bytes()...)
}

// SaveSession stores the YAML summary of s.
func (a *Archive) SaveSession(s *Session) error {
	id, err := ksuid.Parse(s.ID)
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", s.ID, err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()
	if err := a.check(); err != nil {
		return err
	}
	return a.db.Set(sessionKey(id), data, a.writeOpts())
}

// GetSession loads a session by id.
func (a *Archive) GetSession(id string) (*Session, error) {
	kid, err := ksuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", id, err)
	}

	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if err := a.check(); err != nil {
		return nil, err
	}
	data, closer, err := a.db.Get(sessionKey(kid))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()

	var s Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", id, err)
	}
	return &s, nil
}

// Sessions returns every stored session, oldest first. KSUIDs sort by
// creation time, so key order is start order.
func (a *Archive) Sessions() ([]*Session, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if err := a.check(); err != nil {
		return nil, err
	}

	lower := []byte{sessionPrefix}
	iter, err := a.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: prefixEnd(lower),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*Session
	for iter.First(); iter.Valid(); iter.Next() {
		var s Session
		if err := yaml.Unmarshal(iter.Value(), &s); err != nil {
			return out, fmt.Errorf("failed to unmarshal session %x: %w", iter.Key(), err)
		}
		out = append(out, &s)
	}
	return out, iter.Error()
}
