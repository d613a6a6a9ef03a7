package sanitize

import (
	"regexp"
	"strconv"
	"strings"

	"ragchat/internal/logger"
	"ragchat/internal/metrics"
)

var (
	pointPrefix     = regexp.MustCompile(`^(\d+)\.`)
	pointPrefixFull = regexp.MustCompile(`^\d+\.\s*`)
	referenceLabel  = regexp.MustCompile(`(?i)reference:`)
	departmentLabel = regexp.MustCompile(`(?i)department:`)
)

// Fallback reasons reported to the metrics recorder.
const (
	ReasonEmpty      = "empty"
	ReasonBlocked    = "blocked"
	ReasonLowQuality = "low_quality"
)

// Default replies used when Config leaves a message empty.
const (
	DefaultEmptyMessage     = "I couldn't generate a response."
	DefaultBlockedMessage   = "For detailed policy questions, please contact HR directly."
	DefaultFallbackPreamble = "I'm having trouble retrieving the full policy details. The key point is: "
)

// Config holds the gate data. A non-positive MaxPoints becomes 5 and empty
// messages take the Default* replies. MinBullets is used as given.
type Config struct {
	MaxPoints        int
	MinBullets       int
	BlockedPhrases   []string
	EmptyMessage     string
	BlockedMessage   string
	FallbackPreamble string
}

// Sanitizer turns raw model output into user-facing text.
type Sanitizer struct {
	cfg     Config
	blocked []string
	log     logger.Logger
	metrics metrics.Recorder
}

func New(cfg Config, log logger.Logger, rec metrics.Recorder) *Sanitizer {
	if cfg.MaxPoints <= 0 {
		cfg.MaxPoints = 5
	}
	if cfg.MinBullets < 0 {
		cfg.MinBullets = 0
	}
	if cfg.EmptyMessage == "" {
		cfg.EmptyMessage = DefaultEmptyMessage
	}
	if cfg.BlockedMessage == "" {
		cfg.BlockedMessage = DefaultBlockedMessage
	}
	if cfg.FallbackPreamble == "" {
		cfg.FallbackPreamble = DefaultFallbackPreamble
	}
	if log == nil {
		log = logger.Default()
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	blocked := make([]string, 0, len(cfg.BlockedPhrases))
	for _, p := range cfg.BlockedPhrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			blocked = append(blocked, p)
		}
	}
	return &Sanitizer{cfg: cfg, blocked: blocked, log: log.With("component", "sanitizer"), metrics: rec}
}

// Sanitize applies Clean and then Validate.
func (s *Sanitizer) Sanitize(raw string) string {
	return s.Validate(s.Clean(raw))
}

// Clean drops repeated numbered points and points numbered above the cap.
// Lines that are not numbered points are always kept. The result is never
// empty.
func (s *Sanitizer) Clean(raw string) string {
	if raw == "" {
		s.metrics.IncSanitizerFallback(ReasonEmpty)
		return s.cfg.EmptyMessage
	}
	lines := strings.Split(raw, "\n")
	seen := make(map[string]struct{}, len(lines))
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		m := pointPrefix.FindStringSubmatch(line)
		if m == nil {
			kept = append(kept, line)
			continue
		}
		key := strings.ToLower(strings.TrimSpace(pointPrefixFull.ReplaceAllString(line, "")))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if n, err := strconv.Atoi(m[1]); err != nil || n > s.cfg.MaxPoints {
			continue
		}
		kept = append(kept, line)
	}
	out := strings.TrimSpace(strings.Join(kept, "\n"))
	if out == "" {
		s.metrics.IncSanitizerFallback(ReasonEmpty)
		return s.cfg.EmptyMessage
	}
	return out
}

// Validate replaces text that trips the denylist or lacks the expected
// structure with a canned message.
func (s *Sanitizer) Validate(text string) string {
	lower := strings.ToLower(text)
	for _, phrase := range s.blocked {
		if strings.Contains(lower, phrase) {
			s.log.Info("Reply blocked by denylist", "phrase", phrase)
			s.metrics.IncSanitizerFallback(ReasonBlocked)
			return s.cfg.BlockedMessage
		}
	}

	bullets := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "-") {
			bullets++
		}
	}
	hasReference := referenceLabel.MatchString(text)
	// Recorded for diagnostics only; a department label is not required.
	hasDepartment := departmentLabel.MatchString(text)

	if bullets < s.cfg.MinBullets || !hasReference {
		s.log.Info("Reply failed structure check",
			"bullets", bullets, "has_reference", hasReference, "has_department", hasDepartment)
		s.metrics.IncSanitizerFallback(ReasonLowQuality)
		first, _, _ := strings.Cut(text, "\n")
		return s.cfg.FallbackPreamble + first
	}
	return text
}
