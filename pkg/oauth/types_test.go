package oauth

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTokenResponse_ExpirySeconds(t *testing.T) {
	tests := []struct {
		name      string
		expiresIn int
		want      int
	}{
		{"provider omits expires_in", 0, DefaultExpirySeconds},
		{"negative value treated as absent", -1, DefaultExpirySeconds},
		{"provider supplies expires_in", 7200, 7200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &TokenResponse{ExpiresIn: tt.expiresIn}
			if got := resp.ExpirySeconds(); got != tt.want {
				t.Errorf("ExpirySeconds() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTokenResponse_IssuedAtTime(t *testing.T) {
	resp := &TokenResponse{IssuedAt: "1717429200000"}
	got := resp.IssuedAtTime()
	want := time.UnixMilli(1717429200000)
	if !got.Equal(want) {
		t.Errorf("IssuedAtTime() = %v, want %v", got, want)
	}

	if !(&TokenResponse{}).IssuedAtTime().IsZero() {
		t.Error("IssuedAtTime() on empty field should be zero")
	}
	if !(&TokenResponse{IssuedAt: "not-a-number"}).IssuedAtTime().IsZero() {
		t.Error("IssuedAtTime() on garbage should be zero")
	}
}

func TestTokenResponse_Unmarshal(t *testing.T) {
	body := `{
		"access_token": "00Dxx0000001gPL!AR8AQ",
		"refresh_token": "5Aep861TSESvWeug",
		"instance_url": "https://acme.my.salesforce.com",
		"token_type": "Bearer",
		"issued_at": "1717429200000",
		"signature": "c2ln",
		"id": "https://login.salesforce.com/id/00Dxx/005xx",
		"scope": "full refresh_token"
	}`

	var resp TokenResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if resp.AccessToken != "00Dxx0000001gPL!AR8AQ" {
		t.Errorf("AccessToken = %q", resp.AccessToken)
	}
	if resp.RefreshToken != "5Aep861TSESvWeug" {
		t.Errorf("RefreshToken = %q", resp.RefreshToken)
	}
	if resp.InstanceURL != "https://acme.my.salesforce.com" {
		t.Errorf("InstanceURL = %q", resp.InstanceURL)
	}
	// No expires_in in the body: the default applies
	if resp.ExpirySeconds() != DefaultExpirySeconds {
		t.Errorf("ExpirySeconds() = %d, want %d", resp.ExpirySeconds(), DefaultExpirySeconds)
	}
}

func TestParseErrorResponse(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
		wantDesc string
	}{
		{
			name:     "provider error JSON",
			body:     `{"error":"invalid_grant","error_description":"expired authorization code"}`,
			wantCode: "invalid_grant",
			wantDesc: "expired authorization code",
		},
		{
			name:     "code only",
			body:     `{"error":"invalid_client"}`,
			wantCode: "invalid_client",
		},
		{
			name:     "whitespace trimmed",
			body:     `{"error":" invalid_grant "}`,
			wantCode: "invalid_grant",
		},
		{
			name: "HTML error page",
			body: `<html><body>502 Bad Gateway</body></html>`,
		},
		{
			name: "empty body",
			body: ``,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseErrorResponse([]byte(tt.body))
			if got.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Description != tt.wantDesc {
				t.Errorf("Description = %q, want %q", got.Description, tt.wantDesc)
			}
		})
	}
}
