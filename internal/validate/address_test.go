package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddress(t *testing.T) {
	tests := []struct {
		name  string
		addr  string
		valid bool
	}{
		{name: "simple valid address", addr: "user@example.com", valid: true},
		{name: "subdomain", addr: "user@mail.example.com", valid: true},
		{name: "plus addressing", addr: "user+tag@example.com", valid: true},
		{name: "surrounding whitespace trimmed", addr: "  user@example.com  ", valid: true},
		{name: "empty string", addr: "", valid: false},
		{name: "no at sign", addr: "userexample.com", valid: false},
		{name: "two at signs", addr: "user@foo@example.com", valid: false},
		{name: "empty local part", addr: "@example.com", valid: false},
		{name: "empty domain", addr: "user@", valid: false},
		{name: "domain without dot", addr: "user@localhost", valid: false},
		{name: "domain starting with dot", addr: "user@.example.com", valid: false},
		{name: "domain ending with dot", addr: "user@example.com.", valid: false},
		{name: "empty domain label", addr: "user@example..com", valid: false},
		{name: "only at sign", addr: "@", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, Address(tt.addr))
		})
	}
}

func TestAddresses(t *testing.T) {
	assert.True(t, Addresses([]string{"a@example.com", "b@example.org"}))
	assert.False(t, Addresses(nil), "empty recipient set must be rejected")
	assert.False(t, Addresses([]string{}))
	assert.False(t, Addresses([]string{"a@example.com", "broken"}))
}
