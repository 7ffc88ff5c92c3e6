package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tcases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercases and joins words",
			input:    "Study Group",
			expected: "study-group",
		},
		{
			name:     "collapses punctuation runs",
			input:    "Intro to Go!!! (2026)",
			expected: "intro-to-go-2026",
		},
		{
			name:     "trims leading and trailing separators",
			input:    "  --Algorithms--  ",
			expected: "algorithms",
		},
		{
			name:     "already a slug",
			input:    "machine-learning",
			expected: "machine-learning",
		},
		{
			name:     "only invalid characters",
			input:    "!!!",
			expected: "",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Slugify(tc.input))
		})
	}
}

func TestMigrationsArePaired(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := make(map[string]bool)
	downs := make(map[string]bool)
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected migration file %q", name)
		}
	}

	for version := range ups {
		assert.True(t, downs[version], "migration %q has no down file", version)
	}
	for version := range downs {
		assert.True(t, ups[version], "migration %q has no up file", version)
	}
}

func TestReverseMessages(t *testing.T) {
	tcases := []struct {
		name     string
		input    []Message
		expected []Message
	}{
		{
			name: "newest-first window becomes oldest-first",
			input: []Message{
				{Id: 3, Content: "m3"},
				{Id: 2, Content: "m2"},
				{Id: 1, Content: "m1"},
			},
			expected: []Message{
				{Id: 1, Content: "m1"},
				{Id: 2, Content: "m2"},
				{Id: 3, Content: "m3"},
			},
		},
		{
			name:     "single message",
			input:    []Message{{Id: 1}},
			expected: []Message{{Id: 1}},
		},
		{
			name:     "empty",
			input:    nil,
			expected: nil,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			reverseMessages(tc.input)
			assert.Equal(t, tc.expected, tc.input)
		})
	}
}
