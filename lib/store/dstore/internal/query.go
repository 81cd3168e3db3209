package internal

// LookupKind selects what a Lookup on the state machine reads.
type LookupKind uint8

const (
	LookupGet    LookupKind = iota // value of a live entry
	LookupHas                      // existence of a live entry
	LookupDBInfo                   // engine info of the replica
)

func (k LookupKind) String() string {
	switch k {
	case LookupGet:
		return "Get"
	case LookupHas:
		return "Has"
	case LookupDBInfo:
		return "GetDBInfo"
	}
	return "Unknown"
}

// Lookup is passed to SyncRead and StaleRead. Key is empty for LookupDBInfo.
type Lookup struct {
	Kind LookupKind
	Key  string
}

// Value is the answer to a LookupGet.
// LookupHas answers with a bool and LookupDBInfo with a db.DatabaseInfo.
type Value struct {
	Found bool
	Data  []byte
}
