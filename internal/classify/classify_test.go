package classify

import (
	"testing"

	"github.com/ignite/mailevents/internal/domain"
)

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"mx prefix", "<abc@mx.foo.com>", "foo.com"},
		{"sub then mx label", "<abc@sub.mx.EXAMPLE.tld>", "EXAMPLE.tld"},
		{"no brackets", "abc@mx.foo.com", "foo.com"},
		{"no mx label", "<abc@relay.example.com>", "relay.example.com"},
		{"mx inside a word is kept", "<abc@smx.example.com>", "smx.example.com"},
		{"uppercase mx label", "<abc@MX.foo.com>", "foo.com"},
		{"last at wins", "<a@b@mx.foo.com>", "foo.com"},
		{"sendgrid filter id", "<14c5d75ce93.dfd.64b469@ismtpd-555>", "ismtpd-555"},
		{"no at", "<abc.foo.com>", NotFound},
		{"empty", "", NotFound},
		{"nothing after at", "<abc@>", NotFound},
		{"only mx label", "<abc@mx.>", NotFound},
		{"whitespace", "   ", NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractDomain(tt.in)
			if got != tt.want {
				t.Errorf("ExtractDomain(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClassifyHost(t *testing.T) {
	tests := []struct {
		email string
		want  domain.HostCategory
	}{
		{"a@gmail.com", domain.HostGmail},
		{"A@GMAIL.COM", domain.HostGmail},
		{"a@googlemail.gmail.example", domain.HostGmail},
		{"a@outlook.com", domain.HostOutlook},
		{"a@yahoo.co.uk", domain.HostYahoo},
		{"a@hotmail.fr", domain.HostHotmail},
		{"a@icloud.com", domain.HostICloud},
		{"gmail-fan@yahoo.com", domain.HostGmail},
		{"a@proton.me", domain.HostOther},
		{"", domain.HostOther},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			if got := ClassifyHost(tt.email); got != tt.want {
				t.Errorf("ClassifyHost(%q) = %s, want %s", tt.email, got, tt.want)
			}
		})
	}
}
