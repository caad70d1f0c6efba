// Package ulid generates prefixed, time-sortable identifiers backed by
// github.com/oklog/ulid/v2.
//
// Sync log entries use them as primary keys: ordering by ID is ordering by
// creation time, which lets the history table be trimmed without a separate
// sequence column.
package ulid

import (
	"bytes"
	"crypto/rand"
	"database/sql/driver"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Prefixes for the identifiers handed out by the application
const (
	// PrefixLogEntry marks sync history entries
	PrefixLogEntry = "log"

	// PrefixRun marks a single pipeline run, used to correlate log lines
	PrefixRun = "run"

	// PrefixSetting marks persisted settings
	PrefixSetting = "set"

	// PrefixSeparator is used to separate the prefix from the ULID
	PrefixSeparator = "-"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
	// Nil represents the zero value of ULID, useful for nil checks
	Nil = ULID{ulid.ULID{}, ""}
)

// ULID wraps ulid.ULID with an optional prefix
type ULID struct {
	ulid.ULID
	prefix string
}

// Generate creates a new ULID with the current timestamp.
func Generate() ULID {
	return NewWithTime(time.Now())
}

// GenerateWithPrefix creates a new ULID with the current timestamp and a prefix.
func GenerateWithPrefix(prefix string) ULID {
	id := NewWithTime(time.Now())
	id.prefix = prefix
	return id
}

// NewWithTime creates a new ULID with a specific timestamp.
// IDs generated within the same millisecond are still strictly increasing.
func NewWithTime(t time.Time) ULID {
	entropyLock.Lock()
	id := ulid.MustNew(ulid.Timestamp(t), entropy)
	entropyLock.Unlock()
	return ULID{id, ""}
}

// Parse parses a plain or prefixed ULID string ("log-01AN4Z07BY79KA1307SR9X4MV3").
func Parse(id string) (ULID, error) {
	prefix, rawID := split(id)

	parsed, err := ulid.Parse(rawID)
	if err != nil {
		return ULID{}, err
	}

	return ULID{parsed, prefix}, nil
}

// Validate reports whether id is a valid plain or prefixed ULID.
func Validate(id string) bool {
	_, rawID := split(id)
	_, err := ulid.Parse(rawID)
	return err == nil
}

func split(id string) (string, string) {
	if i := strings.LastIndex(id, PrefixSeparator); i >= 0 {
		return id[:i], id[i+1:]
	}
	return "", id
}

// Compare compares two ULIDs lexicographically, ignoring prefixes.
func (u ULID) Compare(other ULID) int {
	return bytes.Compare(u.ULID[:], other.ULID[:])
}

// IsZero returns true if the ULID is the zero value (Nil).
func (u ULID) IsZero() bool {
	return u.ULID == ulid.ULID{}
}

// Prefix returns the prefix of the ULID.
func (u ULID) Prefix() string {
	return u.prefix
}

// String returns "prefix-ulid", or the bare ULID when no prefix is set.
func (u ULID) String() string {
	if u.prefix != "" {
		return u.prefix + PrefixSeparator + u.ULID.String()
	}
	return u.ULID.String()
}

// Time returns the timestamp component of the ULID.
func (u ULID) Time() time.Time {
	return ulid.Time(u.ULID.Time())
}

// Value implements the driver.Valuer interface for database serialization.
func (u ULID) Value() (driver.Value, error) {
	return u.String(), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (u *ULID) Scan(src interface{}) error {
	switch src := src.(type) {
	case nil:
		return nil
	case string:
		parsed, err := Parse(src)
		if err != nil {
			return err
		}
		*u = parsed
		return nil
	case []byte:
		parsed, err := Parse(string(src))
		if err != nil {
			return err
		}
		*u = parsed
		return nil
	}
	return fmt.Errorf("cannot scan %T into ULID", src)
}

// LogEntryID generates a new ID for a sync history entry
func LogEntryID() string {
	return GenerateWithPrefix(PrefixLogEntry).String()
}

// RunID generates a new ID for a pipeline run
func RunID() string {
	return GenerateWithPrefix(PrefixRun).String()
}

// SettingID generates a new ID for a persisted setting
func SettingID() string {
	return GenerateWithPrefix(PrefixSetting).String()
}
