package httpclient_test

import (
	"errors"
	"testing"

	"github.com/torosent/flexconnect/internal/httpclient"
)

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name   string
		route  string
		base   httpclient.URLBase
		params map[string]string
		want   string
	}{
		{
			name:  "route only",
			route: "/r/",
			base:  httpclient.URLBase{URL: "https://h"},
			want:  "https://h/r/",
		},
		{
			name:  "cache key",
			route: "/r/",
			base:  httpclient.URLBase{URL: "https://h", CacheKey: "abc"},
			want:  "https://h/r/~abc~/",
		},
		{
			name:  "cache key before reference",
			route: "/r/",
			base:  httpclient.URLBase{URL: "https://h", CacheKey: "abc", Reference: "ref1"},
			want:  "https://h/r/~abc~/ref1",
		},
		{
			name:   "query params",
			route:  "/r/",
			base:   httpclient.URLBase{URL: "https://h"},
			params: map[string]string{"a": "1"},
			want:   "https://h/r/?a=1",
		},
		{
			name:   "params are encoded and sorted",
			route:  "/sap/bc/lrep/flex/data/",
			base:   httpclient.URLBase{URL: "https://h", Reference: "app.id"},
			params: map[string]string{"sap-language": "EN", "appVersion": "1.0 beta"},
			want:   "https://h/sap/bc/lrep/flex/data/app.id?appVersion=1.0+beta&sap-language=EN",
		},
		{
			name:   "empty params map adds nothing",
			route:  "/r/",
			base:   httpclient.URLBase{URL: "https://h"},
			params: map[string]string{},
			want:   "https://h/r/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := httpclient.BuildURL(tt.route, tt.base, tt.params)
			if err != nil {
				t.Fatalf("BuildURL() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestBuildURLInvalidArgument(t *testing.T) {
	tests := []struct {
		name  string
		route string
		base  httpclient.URLBase
	}{
		{name: "missing route", route: "", base: httpclient.URLBase{URL: "https://h", Reference: "ref"}},
		{name: "missing url", route: "/r/", base: httpclient.URLBase{CacheKey: "abc"}},
		{name: "missing both", route: "", base: httpclient.URLBase{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := httpclient.BuildURL(tt.route, tt.base, map[string]string{"a": "1"})
			if !errors.Is(err, httpclient.ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}
