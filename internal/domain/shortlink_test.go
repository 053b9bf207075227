package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidShortCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"abc", true},
		{"Abc123XYZ", true},
		{"a1b2c3d4e5f6g7h8i9j0", true},
		{"ab", false},
		{"a1b2c3d4e5f6g7h8i9j0k", false},
		{"has-dash", false},
		{"spa ce", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidShortCode(tt.code), tt.code)
	}
}

func TestValidTargetURL(t *testing.T) {
	assert.True(t, ValidTargetURL("https://example.com/landing?a=1"))
	assert.True(t, ValidTargetURL("http://example.com"))
	assert.False(t, ValidTargetURL("example.com/path"))
	assert.False(t, ValidTargetURL("ftp://example.com"))
	assert.False(t, ValidTargetURL("https://"))
	assert.False(t, ValidTargetURL(""))
}

func TestRedirectObjectKey(t *testing.T) {
	assert.Equal(t, "redirects_abc123", RedirectObjectKey("abc123"))
}

func TestDomainAggregate_NormalizeHosts(t *testing.T) {
	agg := DomainAggregate{BlockedByHost: map[HostCategory]int64{HostGmail: 2, HostYahoo: 1}}
	agg.NormalizeHosts()
	assert.Len(t, agg.BlockedByHost, 6)
	assert.Equal(t, int64(0), agg.BlockedByHost[HostICloud])
	assert.Equal(t, int64(3), agg.BlockedTotal())
}
