package storage

import (
	"testing"
	"time"
)

func TestEscapeQueryTerm(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"Acme Corp", "Acme Corp"},
		{"O'Brien & Sons", `O\'Brien & Sons`},
		{`back\slash`, `back\\slash`},
		{`both\'`, `both\\\'`},
	}
	for _, tc := range cases {
		if got := escapeQueryTerm(tc.in); got != tc.expected {
			t.Fatalf("escapeQueryTerm(%q) = %q, expected %q", tc.in, got, tc.expected)
		}
	}
}

func TestChildrenQuery(t *testing.T) {
	cases := []struct {
		name     string
		parentID string
		filter   ListFilter
		expected string
	}{
		{
			name:     "bare listing",
			parentID: "root123",
			expected: "'root123' in parents and trashed = false",
		},
		{
			name:     "exact name",
			parentID: "root123",
			filter:   ListFilter{Name: "GST"},
			expected: "'root123' in parents and trashed = false and name = 'GST'",
		},
		{
			name:     "folders only",
			parentID: "root123",
			filter:   ListFilter{FoldersOnly: true},
			expected: "'root123' in parents and trashed = false and mimeType = 'application/vnd.google-apps.folder'",
		},
		{
			name:     "quoted name is escaped",
			parentID: "root123",
			filter:   ListFilter{Name: "O'Brien", FoldersOnly: true},
			expected: `'root123' in parents and trashed = false and name = 'O\'Brien' and mimeType = 'application/vnd.google-apps.folder'`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := childrenQuery(tc.parentID, tc.filter); got != tc.expected {
				t.Fatalf("childrenQuery = %q, expected %q", got, tc.expected)
			}
		})
	}
}

func TestParseDriveTime(t *testing.T) {
	got := parseDriveTime("2025-04-01T10:30:00.000Z")
	expected := time.Date(2025, time.April, 1, 10, 30, 0, 0, time.UTC)
	if !got.Equal(expected) {
		t.Fatalf("parseDriveTime = %v", got)
	}
	if !parseDriveTime("garbage").IsZero() {
		t.Fatalf("malformed timestamp must map to zero time")
	}
}

func TestNormalizeRole(t *testing.T) {
	cases := []struct {
		in       string
		expected Role
	}{
		{"writer", RoleWriter},
		{" Reader ", RoleReader},
		{"COMMENTER", RoleCommenter},
		{"owner", RoleReader},
		{"", RoleReader},
	}
	for _, tc := range cases {
		if got := NormalizeRole(tc.in); got != tc.expected {
			t.Fatalf("NormalizeRole(%q) = %s, expected %s", tc.in, got, tc.expected)
		}
	}
}
