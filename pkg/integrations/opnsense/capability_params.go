package opnsense

import (
	"fmt"
	"net/url"
	"strings"
)

// fillPlaceholders substitutes {name} segments in a cataloged endpoint from
// the caller's params and returns the params that were not consumed.
func fillPlaceholders(endpoint string, params map[string]any) (string, map[string]any) {
	remaining := make(map[string]any, len(params))
	for name, value := range params {
		remaining[name] = value
	}

	path := endpoint

	for name, value := range params {
		placeholder := "{" + name + "}"
		if !strings.Contains(path, placeholder) {
			continue
		}

		path = strings.ReplaceAll(path, placeholder, url.PathEscape(fmt.Sprintf("%v", value)))
		delete(remaining, name)
	}

	return path, remaining
}

func queryFromParams(params map[string]any) url.Values {
	query := url.Values{}
	for name, value := range params {
		query.Set(name, fmt.Sprintf("%v", value))
	}

	return query
}
