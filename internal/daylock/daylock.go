// Package daylock serializes work on one identity's calendar day.
package daylock

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/moby/locker"
)

// Key identifies an (identity, calendar day) pair.
type Key struct {
	IdentityID int64
	Day        string // YYYY-MM-DD
}

// KeyOf builds the key for day as seen in its own location.
func KeyOf(identityID int64, day time.Time) Key {
	return Key{IdentityID: identityID, Day: day.Format("2006-01-02")}
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%s", k.IdentityID, k.Day)
}

// Locker hands out per-key locks. Unused keys are dropped by the underlying
// named locker, so memory only grows with concurrent activity.
type Locker struct {
	names *locker.Locker
}

// New creates an empty Locker.
func New() *Locker {
	return &Locker{names: locker.New()}
}

// Lock blocks until the key is free and returns its unlock function.
func (l *Locker) Lock(identityID int64, day time.Time) func() {
	return l.lockKey(KeyOf(identityID, day))
}

// LockRange locks every day key in order and returns a function releasing all
// of them. Keys are acquired in ascending order so overlapping ranges never
// deadlock.
func (l *Locker) LockRange(identityID int64, days []time.Time) func() {
	keys := make([]Key, 0, len(days))
	seen := make(map[Key]bool, len(days))
	for _, d := range days {
		k := KeyOf(identityID, d)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Day < keys[j].Day })

	unlocks := make([]func(), 0, len(keys))
	for _, k := range keys {
		unlocks = append(unlocks, l.lockKey(k))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

func (l *Locker) lockKey(k Key) func() {
	name := k.String()
	l.names.Lock(name)

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := l.names.Unlock(name); err != nil {
				log.Printf("daylock: unlock %s: %v", name, err)
			}
		})
	}
}
