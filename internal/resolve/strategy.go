package resolve

import "strconv"

// Strategy identifies how a field's conflicting values are combined.
type Strategy int

const (
	// LastWriterWins keeps the value whose timestamp is strictly greater;
	// ties keep local.
	LastWriterWins Strategy = iota
	// TrueWins is the boolean OR of both values: once a flag has been set
	// anywhere it is never unset by a concurrent write.
	TrueWins
	// MergeArrays unions two sequences of keyed records by identity.
	MergeArrays
	// MaxValue keeps the numerically larger value.
	MaxValue
	// MinValue keeps the numerically smaller value.
	MinValue
	// PreferLocal always keeps the local value.
	PreferLocal
	// PreferRemote always keeps the remote value.
	PreferRemote
)

// ParseStrategy maps a wire tag to its Strategy. The second return is
// false for unrecognized tags.
func ParseStrategy(tag string) (Strategy, bool) {
	switch tag {
	case "last_writer_wins":
		return LastWriterWins, true
	case "true_wins":
		return TrueWins, true
	case "merge_arrays":
		return MergeArrays, true
	case "max_value":
		return MaxValue, true
	case "min_value":
		return MinValue, true
	case "prefer_local":
		return PreferLocal, true
	case "prefer_remote":
		return PreferRemote, true
	}
	return LastWriterWins, false
}

func (s Strategy) String() string {
	switch s {
	case LastWriterWins:
		return "last_writer_wins"
	case TrueWins:
		return "true_wins"
	case MergeArrays:
		return "merge_arrays"
	case MaxValue:
		return "max_value"
	case MinValue:
		return "min_value"
	case PreferLocal:
		return "prefer_local"
	case PreferRemote:
		return "prefer_remote"
	}
	return "unknown"
}

// MarshalJSON encodes the strategy as its wire tag.
func (s Strategy) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(s.String())), nil
}

// valid reports whether s is one of the recognized strategies.
func (s Strategy) valid() bool {
	return s >= LastWriterWins && s <= PreferRemote
}
