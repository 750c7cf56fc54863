package operation

import (
	"fmt"
	"strings"

	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
)

// Kind is a store operation kind. The zero value is not a valid kind.
type Kind uint8

const (
	KindPut Kind = iota + 1
	KindGet
	KindRemove
	KindRemoveIfMatch
	KindPutIfAbsent
	KindReplace
	KindReplaceIfMatch
	KindPutAll
	KindGetAll
	KindRemoveAll

	numKinds
)

var kindInfo = [numKinds]struct {
	name    string
	success metrics.Result
	bulk    bool
	writes  bool
}{
	KindPut:            {"put", metrics.ResultWrite, false, true},
	KindGet:            {"get", metrics.ResultHit, false, false},
	KindRemove:         {"remove", metrics.ResultRemove, false, false},
	KindRemoveIfMatch:  {"remove-if-match", metrics.ResultRemove, false, true},
	KindPutIfAbsent:    {"put-if-absent", metrics.ResultWrite, false, true},
	KindReplace:        {"replace", metrics.ResultWrite, false, true},
	KindReplaceIfMatch: {"replace-if-match", metrics.ResultWrite, false, true},
	KindPutAll:         {"put-all", metrics.ResultWrite, true, true},
	KindGetAll:         {"get-all", metrics.ResultHit, true, false},
	KindRemoveAll:      {"remove-all", metrics.ResultRemove, true, false},
}

// AllKinds returns every kind in declaration order.
func AllKinds() []Kind {
	out := make([]Kind, 0, numKinds-1)
	for k := KindPut; k < numKinds; k++ {
		out = append(out, k)
	}
	return out
}

// Valid reports whether k is a defined kind.
func (k Kind) Valid() bool {
	return k >= KindPut && k < numKinds
}

func (k Kind) String() string {
	if k.Valid() {
		return kindInfo[k].name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Success is the result recorded when the operation takes effect. Invalid
// kinds report ResultException.
func (k Kind) Success() metrics.Result {
	if !k.Valid() {
		return metrics.ResultException
	}
	return kindInfo[k].success
}

// Bulk reports whether the kind acts on BulkSize consecutive keys.
func (k Kind) Bulk() bool {
	return k.Valid() && kindInfo[k].bulk
}

// Writes reports whether the kind needs a synthesized value.
func (k Kind) Writes() bool {
	return k.Valid() && kindInfo[k].writes
}

// ParseKind parses "put-if-absent" as well as "PUT_IF_ABSENT".
func ParseKind(s string) (Kind, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for k := KindPut; k < numKinds; k++ {
		if kindInfo[k].name == norm {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown operation kind: %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid operation kind: %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
