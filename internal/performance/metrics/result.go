package metrics

import (
	"fmt"
	"strings"
)

// Result classifies the outcome of a single store operation attempt.
type Result uint8

const (
	// ResultHit is a read that found its entry.
	ResultHit Result = iota
	// ResultMiss is a lookup or conditional operation that found nothing to act on.
	ResultMiss
	// ResultWrite is a completed write.
	ResultWrite
	// ResultRemove is a removal of an existing entry.
	ResultRemove
	// ResultException is an attempt that failed with an error.
	ResultException

	numResults
)

var resultNames = [numResults]string{
	ResultHit:       "HIT",
	ResultMiss:      "MISS",
	ResultWrite:     "WRITE",
	ResultRemove:    "REMOVE",
	ResultException: "EXCEPTION",
}

func (r Result) String() string {
	if r < numResults {
		return resultNames[r]
	}
	return fmt.Sprintf("Result(%d)", uint8(r))
}

// Valid reports whether r is one of the defined results.
func (r Result) Valid() bool {
	return r < numResults
}

// AllResults returns every result kind in declaration order.
func AllResults() []Result {
	out := make([]Result, 0, numResults)
	for r := Result(0); r < numResults; r++ {
		out = append(out, r)
	}
	return out
}

// ParseResult parses a result name. GET and PUT are accepted as aliases
// for HIT and WRITE.
func ParseResult(s string) (Result, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HIT", "GET":
		return ResultHit, nil
	case "MISS":
		return ResultMiss, nil
	case "WRITE", "PUT":
		return ResultWrite, nil
	case "REMOVE":
		return ResultRemove, nil
	case "EXCEPTION":
		return ResultException, nil
	default:
		return 0, fmt.Errorf("unknown result kind: %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler so results can be used as
// JSON map keys.
func (r Result) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid result kind: %d", uint8(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Result) UnmarshalText(text []byte) error {
	parsed, err := ParseResult(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
