package db

import (
	"io"
	"time"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple    Implementation = "maple"
	ImplSQLite   Implementation = "sqlite"
	ImplPostgres Implementation = "postgres"
	ImplS3       Implementation = "s3"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureSet        Feature = 1 << iota // Support for Set operations
	FeatureSetIfUnset                     // Support for SetIfUnset operations
	FeatureGet                            // Support for Get operations
	FeatureDelete                         // Support for Delete operations
	FeatureHas                            // Support for Has operations
	FeatureTTL                            // Support for expiring entries (non-zero expiresAt)
	FeatureSave                           // Support for Save operations
	FeatureLoad                           // Support for Load operations
)

func (f Feature) String() string {
	switch f {
	case FeatureSet:
		return "Set"
	case FeatureSetIfUnset:
		return "SetIfUnset"
	case FeatureGet:
		return "Get"
	case FeatureDelete:
		return "Delete"
	case FeatureHas:
		return "Has"
	case FeatureTTL:
		return "TTL"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	default:
		return "Unknown"
	}
}

// Features expands a feature mask into the list of single features it contains.
func Features(mask Feature) []Feature {
	var out []Feature
	for f := FeatureSet; f <= FeatureLoad; f <<= 1 {
		if mask&f == f {
			out = append(out, f)
		}
	}
	return out
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	Entries           int            `json:"entries"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for key-value database engines.
// Engines differ in durability (memory, sqlite, postgres, s3) but must manage keys consistently:
// an entry whose expiresAt lies in the past is invisible to Get and Has and may be overwritten by SetIfUnset.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or updates an entry. An existing entry loses its expiration.
	Set(key string, value []byte) (err error)

	// SetIfUnset inserts an entry only if the key does not exist (or is expired).
	// A zero expiresAt means the entry never expires.
	// The boolean return value reports whether this call stored the value.
	SetIfUnset(key string, value []byte, expiresAt time.Time) (stored bool, err error)

	// SetIfUnsetAt behaves like SetIfUnset but decides whether an existing entry is expired at now
	// instead of the wall clock. Replicated callers pass the clock of the proposer so every
	// replica takes the same decision.
	SetIfUnsetAt(key string, value []byte, expiresAt, now time.Time) (stored bool, err error)

	// Delete removes an entry. Deleting a missing key is not an error.
	Delete(key string) (err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for an exact key.
	// The boolean return value indicates whether a value for the key was found.
	// The returned slice is owned by the caller.
	Get(key string) (value []byte, loaded bool, err error)

	// Has checks whether a key exists in the database.
	Has(key string) (loaded bool, err error)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load replaces the database state with the data provided by an io.Reader.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close closes the database.
	Close() (err error)
}

// Expired reports whether an entry with the given expiration (unix nanoseconds, 0 = never) is expired at now.
func Expired(expiresAtNano int64, now time.Time) bool {
	return expiresAtNano != 0 && expiresAtNano <= now.UnixNano()
}

// UnixNano converts an optional deadline into the unix nanosecond representation used by the engines.
func UnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
