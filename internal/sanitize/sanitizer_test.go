package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"ragchat/internal/config"
	"ragchat/internal/logger"
)

const (
	blockedMessage = "For detailed policy questions, please contact HR directly."
	preamble       = "I'm having trouble retrieving the full policy details. The key point is: "
)

func newTestSanitizer() *Sanitizer {
	d := config.Default().Sanitizer
	return New(Config{
		MaxPoints:        d.MaxPoints,
		MinBullets:       d.MinBullets,
		BlockedPhrases:   d.BlockedPhrases,
		EmptyMessage:     d.EmptyMessage,
		BlockedMessage:   d.BlockedMessage,
		FallbackPreamble: d.FallbackPreamble,
	}, logger.NewLogger(logger.TestConfig()), nil)
}

func TestSanitizer_Clean(t *testing.T) {
	s := newTestSanitizer()

	t.Run("Should drop duplicate points and points above the cap", func(t *testing.T) {
		in := "1. A\n2. B\n1. A\n3. C\n6. D"
		assert.Equal(t, "1. A\n2. B\n3. C", s.Clean(in))
	})

	t.Run("Should compare points case-insensitively after the numeral", func(t *testing.T) {
		in := "1. Annual Leave\n2.   annual leave  \n3. Sick leave"
		assert.Equal(t, "1. Annual Leave\n3. Sick leave", s.Clean(in))
	})

	t.Run("Should never drop lines that are not points", func(t *testing.T) {
		in := "Intro\n- bullet\n- bullet\n  7. indented is not a point\n10 items"
		assert.Equal(t, in, s.Clean(in))
	})

	t.Run("Should return the fixed message for empty input", func(t *testing.T) {
		assert.Equal(t, "I couldn't generate a response.", s.Clean(""))
	})

	t.Run("Should return the fixed message when nothing survives", func(t *testing.T) {
		for _, in := range []string{"  \n ", "\n\n", "6. only a capped point", "7. a\n8. b"} {
			assert.Equal(t, "I couldn't generate a response.", s.Clean(in), "input %q", in)
		}
	})

	t.Run("Should trim surrounding whitespace", func(t *testing.T) {
		assert.Equal(t, "1. A", s.Clean("\n\n1. A\n\n"))
	})

	t.Run("Should be idempotent", func(t *testing.T) {
		inputs := []string{
			"1. A\n2. B\n1. A\n3. C\n6. D",
			"",
			"text\n- a\n- b\nReference: [Policy 1]",
			"4. four\n5. five\n6. six\n5. five",
		}
		for _, in := range inputs {
			once := s.Clean(in)
			assert.Equal(t, once, s.Clean(once), "input %q", in)
		}
	})
}

func TestSanitizer_Validate(t *testing.T) {
	s := newTestSanitizer()
	good := "1. SUMMARY: Staff get 20 days of leave.\n2. POLICY DETAILS:\n   - Accrues monthly\n   - Carry over 5 days\n3. REFERENCE: [Policy HR-101]"

	t.Run("Should keep a well formed answer", func(t *testing.T) {
		assert.Equal(t, good, s.Validate(good))
	})

	t.Run("Should replace text containing a blocked phrase", func(t *testing.T) {
		for _, in := range []string{
			"You MUST COMPLY OR face action\n- a\n- b\nreference: x",
			"We will fire you.",
			"This is a Strict Policy.",
			"A no-tolerance rule applies",
			"Report immediately.",
		} {
			assert.Equal(t, blockedMessage, s.Validate(in), "input %q", in)
		}
	})

	t.Run("Should fall back when bullets are missing", func(t *testing.T) {
		in := "Leave is 20 days.\n- one bullet\nReference: [Policy 1]"
		assert.Equal(t, preamble+"Leave is 20 days.", s.Validate(in))
	})

	t.Run("Should fall back when the reference is missing", func(t *testing.T) {
		in := "Leave is 20 days.\n- a\n- b"
		assert.Equal(t, preamble+"Leave is 20 days.", s.Validate(in))
	})

	t.Run("Should accept the reference label in any case", func(t *testing.T) {
		in := "Summary\n- a\n- b\nREFERENCE: [Section 2.1]"
		assert.Equal(t, in, s.Validate(in))
	})

	t.Run("Should not require a department label", func(t *testing.T) {
		assert.NotContains(t, good, "department:")
		assert.Equal(t, good, s.Validate(good))
	})
}

func TestSanitizer_Sanitize(t *testing.T) {
	s := newTestSanitizer()

	t.Run("Should always return non-empty text", func(t *testing.T) {
		for _, in := range []string{"", " ", "\n\n", "6. only a capped point"} {
			out := s.Sanitize(in)
			assert.NotEmpty(t, strings.TrimSpace(out), "input %q", in)
		}
	})

	t.Run("Should route empty output through the quality fallback", func(t *testing.T) {
		assert.Equal(t, preamble+"I couldn't generate a response.", s.Sanitize(""))
	})

	t.Run("Should deduplicate before validating", func(t *testing.T) {
		in := "1. SUMMARY: yes\n1. SUMMARY: yes\n- a\n- b\nReference: [Policy 1]"
		assert.Equal(t, "1. SUMMARY: yes\n- a\n- b\nReference: [Policy 1]", s.Sanitize(in))
	})
}

func TestNew_NormalisesDenylist(t *testing.T) {
	s := New(Config{BlockedPhrases: []string{"  Zero Tolerance ", ""}, BlockedMessage: "blocked", FallbackPreamble: "p: "}, logger.NewLogger(logger.TestConfig()), nil)
	assert.Equal(t, []string{"zero tolerance"}, s.blocked)
	assert.Equal(t, "blocked", s.Validate("This is ZERO TOLERANCE"))
}

func TestNew_DefaultsEmptyMessages(t *testing.T) {
	s := New(Config{BlockedPhrases: []string{"fire you"}}, logger.NewLogger(logger.TestConfig()), nil)

	t.Run("Should use the default empty message", func(t *testing.T) {
		assert.Equal(t, DefaultEmptyMessage, s.Clean(""))
	})

	t.Run("Should use the default blocked message", func(t *testing.T) {
		assert.Equal(t, DefaultBlockedMessage, s.Validate("We will fire you."))
	})

	t.Run("Should never produce an empty reply", func(t *testing.T) {
		for _, in := range []string{"", " ", "6. capped", "no structure at all"} {
			assert.NotEmpty(t, strings.TrimSpace(s.Sanitize(in)), "input %q", in)
		}
	})
}
