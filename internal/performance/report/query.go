package report

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Query extracts a value from a JSON result using a JSONPath expression
// such as "$.metrics.targets[0].results.HIT.p95".
func Query(data []byte, path string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty JSON document")
	}
	if path == "" {
		return "", fmt.Errorf("empty JSONPath expression")
	}
	if !gjson.ValidBytes(data) {
		return "", fmt.Errorf("invalid JSON document")
	}

	result := gjson.GetBytes(data, toGjsonPath(path))
	if !result.Exists() {
		return "", fmt.Errorf("path not found: %s", path)
	}
	if result.Type == gjson.Null {
		return "null", nil
	}
	return result.String(), nil
}

// QueryMultiple runs Query for every named path. Values found are returned
// even when some paths fail.
func QueryMultiple(data []byte, paths map[string]string) (map[string]string, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no JSONPath expressions provided")
	}

	results := make(map[string]string, len(paths))
	var errs []string
	for name, path := range paths {
		value, err := Query(data, path)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		results[name] = value
	}
	if len(errs) > 0 {
		return results, fmt.Errorf("query errors: %s", strings.Join(errs, "; "))
	}
	return results, nil
}

// toGjsonPath converts JSONPath ($.targets[0].name) to gjson syntax
// (targets.0.name).
func toGjsonPath(path string) string {
	path = strings.TrimPrefix(path, "$")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return "@this"
	}

	r := strings.NewReplacer(`['`, ".", `']`, "", `["`, ".", `"]`, "", "[", ".", "]", "")
	path = r.Replace(path)
	return strings.TrimPrefix(path, ".")
}
