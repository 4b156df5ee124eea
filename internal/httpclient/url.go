package httpclient

import (
	"errors"
	"fmt"
	"net/url"
)

// ErrInvalidArgument is returned when a caller passes an incomplete configuration.
var ErrInvalidArgument = errors.New("not all necessary parameters were passed")

// URLBase carries the connector-specific parts of a request URL.
type URLBase struct {
	URL       string
	Reference string
	CacheKey  string
}

// BuildURL composes a full request URL. The parts are appended in a fixed
// order because servers parse the path positionally:
//
//	base.URL + route [+ "~" + CacheKey + "~/"] [+ Reference] [+ "?" + params]
func BuildURL(route string, base URLBase, params map[string]string) (string, error) {
	if route == "" {
		return "", fmt.Errorf("route: %w", ErrInvalidArgument)
	}
	if base.URL == "" {
		return "", fmt.Errorf("url: %w", ErrInvalidArgument)
	}

	target := base.URL + route
	if base.CacheKey != "" {
		target += "~" + base.CacheKey + "~/"
	}
	if base.Reference != "" {
		target += base.Reference
	}

	if len(params) > 0 {
		values := make(url.Values, len(params))
		for key, value := range params {
			values.Set(key, value)
		}
		if encoded := values.Encode(); encoded != "" {
			target += "?" + encoded
		}
	}
	return target, nil
}
