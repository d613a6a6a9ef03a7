package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/tidwall/gjson"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
)

const maxStderrInError = 512

// Config configures how the retrieval collaborator is launched.
type Config struct {
	ProjectPath string
	Interpreter string
	Script      string
	Command     string
	APIKeyEnv   string
	APIKey      string
	Timeout     time.Duration
}

// Client runs the retrieval collaborator once per query. It expects the
// process to print exactly one JSON object on stdout and exit.
type Client struct {
	dir       string
	program   string
	args      []string
	apiKeyEnv string
	apiKey    string
	timeout   time.Duration
}

// NewClient resolves the command line from cfg.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ProjectPath == "" {
		return nil, errors.New("retrieval project path is required")
	}
	c := &Client{
		dir:       cfg.ProjectPath,
		apiKeyEnv: cfg.APIKeyEnv,
		apiKey:    cfg.APIKey,
		timeout:   cfg.Timeout,
	}
	if cfg.Command != "" {
		parts, err := shlex.Split(cfg.Command)
		if err != nil {
			return nil, fmt.Errorf("parse retrieval command: %w", err)
		}
		if len(parts) == 0 {
			return nil, errors.New("retrieval command is empty")
		}
		c.program, c.args = parts[0], parts[1:]
		return c, nil
	}
	if cfg.Interpreter == "" || cfg.Script == "" {
		return nil, errors.New("retrieval interpreter and script are required")
	}
	c.program = c.inProject(cfg.Interpreter)
	c.args = []string{c.inProject(cfg.Script)}
	return c, nil
}

func (c *Client) inProject(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.dir, p)
}

// Retrieve invokes the collaborator with the JSON-encoded query as its only
// extra argument. Failures are reported in the result's Error field.
func (c *Client) Retrieve(ctx context.Context, query string) domain.RetrievalResult {
	log := logger.FromContext(ctx).With("component", "retrieval")
	arg, err := encodeQuery(query)
	if err != nil {
		return domain.RetrievalResult{Error: err.Error()}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := append(append([]string{}, c.args...), arg)
	cmd := exec.CommandContext(ctx, c.program, args...)
	cmd.Dir = c.dir
	cmd.Env = os.Environ()
	if c.apiKeyEnv != "" && c.apiKey != "" {
		cmd.Env = append(cmd.Env, c.apiKeyEnv+"="+c.apiKey)
	}
	// Grandchildren holding stdout open must not stall Wait forever.
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		msg := err.Error()
		if tail := tailOf(stderr.String(), maxStderrInError); tail != "" {
			msg += ": " + tail
		}
		log.Warn("Retrieval process failed", "error", msg, "elapsed", time.Since(start))
		return domain.RetrievalResult{Error: msg}
	}
	raw := stdout.String()
	log.Debug("Raw retrieval response", "bytes", len(raw), "elapsed", time.Since(start))
	return parseOutput(raw)
}

// encodeQuery renders query as a JSON string literal without HTML escaping.
func encodeQuery(query string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(query); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func parseOutput(raw string) domain.RetrievalResult {
	body := strings.TrimSpace(raw)
	if !gjson.Valid(body) {
		return domain.RetrievalResult{Error: "Invalid JSON: " + raw}
	}
	doc := gjson.Parse(body)
	if !doc.IsObject() {
		return domain.RetrievalResult{Error: "Invalid JSON: " + raw}
	}
	if msg := doc.Get("error").String(); msg != "" {
		return domain.RetrievalResult{Error: msg}
	}
	res := domain.RetrievalResult{
		Context: doc.Get("context").String(),
		Sources: []string{},
	}
	for _, s := range doc.Get("sources").Array() {
		res.Sources = append(res.Sources, s.String())
	}
	return res
}

func tailOf(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
