package domain

import (
	"strings"
	"testing"
)

func TestGenerateAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		wantErr bool
	}{
		{
			name:    "generate test key",
			env:     EnvTest,
			wantErr: false,
		},
		{
			name:    "generate live key",
			env:     EnvLive,
			wantErr: false,
		},
		{
			name:    "invalid environment",
			env:     "invalid",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plainKey, hash, err := GenerateAPIKey(tt.env)

			if tt.wantErr {
				if err == nil {
					t.Errorf("GenerateAPIKey() expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("GenerateAPIKey() unexpected error: %v", err)
				return
			}

			expectedPrefix := "vigia_" + tt.env + "_"
			if !strings.HasPrefix(plainKey, expectedPrefix) {
				t.Errorf("plainKey = %s, want prefix %s", plainKey, expectedPrefix)
			}

			if len(plainKey) != len(expectedPrefix)+apiKeyLength {
				t.Errorf("plainKey length = %d, want %d", len(plainKey), len(expectedPrefix)+apiKeyLength)
			}

			if hash != HashAPIKey(plainKey) {
				t.Errorf("hash does not match HashAPIKey(plainKey)")
			}

			if !IsValidFormat(plainKey) {
				t.Errorf("generated key has invalid format: %s", plainKey)
			}
		})
	}
}

func TestHashAPIKey(t *testing.T) {
	key := "vigia_test_ABC123XYZ789"

	hash1 := HashAPIKey(key)
	hash2 := HashAPIKey(key)

	if hash1 != hash2 {
		t.Errorf("hash not deterministic: hash1=%s, hash2=%s", hash1, hash2)
	}

	if len(hash1) != 64 {
		t.Errorf("hash length = %d, want 64 (SHA256 hex)", len(hash1))
	}
}

func TestMatchAPIKey(t *testing.T) {
	key := "vigia_live_" + strings.Repeat("Z", apiKeyLength)
	hash := HashAPIKey(key)

	tests := []struct {
		name string
		key  string
		hash string
		want bool
	}{
		{name: "matching key", key: key, hash: hash, want: true},
		{name: "uppercase hash", key: key, hash: strings.ToUpper(hash), want: true},
		{name: "wrong key", key: key + "x", hash: hash, want: false},
		{name: "empty key", key: "", hash: hash, want: false},
		{name: "empty hash", key: key, hash: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchAPIKey(tt.key, tt.hash); got != tt.want {
				t.Errorf("MatchAPIKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsValidFormat(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want bool
	}{
		{
			name: "valid test key",
			key:  "vigia_test_" + strings.Repeat("A", apiKeyLength),
			want: true,
		},
		{
			name: "valid live key",
			key:  "vigia_live_" + strings.Repeat("B", apiKeyLength),
			want: true,
		},
		{
			name: "invalid prefix",
			key:  "invalid_test_" + strings.Repeat("A", apiKeyLength),
			want: false,
		},
		{
			name: "invalid environment",
			key:  "vigia_prod_" + strings.Repeat("A", apiKeyLength),
			want: false,
		},
		{
			name: "too short",
			key:  "vigia_test_ABC",
			want: false,
		},
		{
			name: "invalid characters",
			key:  "vigia_test_" + strings.Repeat("!", apiKeyLength),
			want: false,
		},
		{
			name: "missing parts",
			key:  "vigia_test",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidFormat(tt.key)
			if got != tt.want {
				t.Errorf("IsValidFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}
