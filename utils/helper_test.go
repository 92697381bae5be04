package utils

import (
	"context"
	"reflect"
	"testing"
)

func TestIsValidEmail(t *testing.T) {
	valid := []string{"ravi@acme.in", "a.b+tag@example.co.uk"}
	invalid := []string{"", "not-an-email", "a@b", "@example.com", "spaces in@example.com"}

	for _, email := range valid {
		if !IsValidEmail(email) {
			t.Fatalf("IsValidEmail(%q) = false", email)
		}
	}
	for _, email := range invalid {
		if IsValidEmail(email) {
			t.Fatalf("IsValidEmail(%q) = true", email)
		}
	}
}

func TestSplitAndTrim(t *testing.T) {
	cases := []struct {
		in       string
		expected []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b ,, c ", []string{"a", "b", "c"}},
		{"", []string{}},
		{" , ,", []string{}},
	}
	for _, tc := range cases {
		if got := SplitAndTrim(tc.in); !reflect.DeepEqual(got, tc.expected) {
			t.Fatalf("SplitAndTrim(%q) = %v, expected %v", tc.in, got, tc.expected)
		}
	}
}

func TestJwtRoundTrip(t *testing.T) {
	token, err := JwtGenerate("ravi@acme.in", "Ravi", "ya29.drive-token")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := JwtValidate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Email != "ravi@acme.in" || claims.Name != "Ravi" || claims.DriveToken != "ya29.drive-token" {
		t.Fatalf("claims = %+v", claims)
	}

	if _, err := JwtValidate(token + "tampered"); err == nil {
		t.Fatalf("tampered token accepted")
	}
	if _, err := JwtValidate("not a jwt"); err == nil {
		t.Fatalf("garbage token accepted")
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := SetUserEmailInContext(context.Background(), "ravi@acme.in")
	ctx = SetUserNameInContext(ctx, "Ravi")
	ctx = SetDriveTokenInContext(ctx, "tok")
	ctx = SetCorrelationIdInContext(ctx, "cid-1")

	if v, ok := GetUserEmailFromContext(ctx); !ok || v != "ravi@acme.in" {
		t.Fatalf("email = %q, %v", v, ok)
	}
	if v, ok := GetUserNameFromContext(ctx); !ok || v != "Ravi" {
		t.Fatalf("name = %q, %v", v, ok)
	}
	if v, ok := GetDriveTokenFromContext(ctx); !ok || v != "tok" {
		t.Fatalf("drive token = %q, %v", v, ok)
	}
	if v, ok := GetCorrelationIdFromContext(ctx); !ok || v != "cid-1" {
		t.Fatalf("correlation id = %q, %v", v, ok)
	}

	if _, ok := GetUserEmailFromContext(context.Background()); ok {
		t.Fatalf("empty context reported a user email")
	}
}
