package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenRecordExpiresWithin(t *testing.T) {
	now := time.Now()
	margin := 30 * time.Second

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"well in the future", now.Add(time.Hour), false},
		{"just outside the margin", now.Add(31 * time.Second), false},
		{"inside the margin", now.Add(10 * time.Second), true},
		{"already expired", now.Add(-time.Second), true},
		{"no expiry reported", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := TokenRecord{AccessToken: "A1", ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, record.ExpiresWithin(margin, now))
		})
	}
}
