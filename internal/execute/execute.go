// Package execute proxies room code to the public Piston API. It is a
// stateless request/timeout/retry wrapper; the relay has no dependency
// on its outcome.
package execute

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultEndpoint is the public Piston instance.
	DefaultEndpoint = "https://emkc.org/api/v2/piston"

	// DefaultTimeout bounds one execution end to end, including the
	// version-lookup retry.
	DefaultTimeout = 12 * time.Second

	maxCodeSize = 100_000
	maxArgs     = 16
)

var (
	ErrNoCode      = errors.New("provide code (<= 100kB)")
	ErrTimedOut    = errors.New("execution timed out")
	ErrUpstream    = errors.New("upstream error")
	ErrUnavailable = errors.New("request failed")
)

// Request describes one execution.
type Request struct {
	Language string   `json:"language"`
	Code     string   `json:"code"`
	Stdin    string   `json:"stdin"`
	Args     []string `json:"args"`
	Version  string   `json:"version"`
}

// Response is the normalized execution result. Compile and run output
// streams are concatenated.
type Response struct {
	OK       bool     `json:"ok"`
	Language string   `json:"language,omitempty"`
	Stdout   string   `json:"stdout,omitempty"`
	Stderr   string   `json:"stderr,omitempty"`
	Code     int      `json:"code"`
	Time     *float64 `json:"time"`
	Error    string   `json:"error,omitempty"`
	Details  string   `json:"details,omitempty"`
}

// Client talks to a Piston-compatible endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	timeout  time.Duration
}

// New creates a client for the given endpoint. Empty arguments select
// the public instance and the default timeout.
func New(endpoint string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{},
		timeout:  timeout,
	}
}

// pistonExecute is the upstream request body.
type pistonExecute struct {
	Language string       `json:"language"`
	Version  string       `json:"version"`
	Files    []pistonFile `json:"files"`
	Stdin    string       `json:"stdin"`
	Args     []string     `json:"args"`
}

type pistonFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type pistonResult struct {
	Compile *pistonStage `json:"compile"`
	Run     *pistonStage `json:"run"`
}

type pistonStage struct {
	Stdout string   `json:"stdout"`
	Stderr string   `json:"stderr"`
	Code   int      `json:"code"`
	Time   *float64 `json:"time"`
}

type pistonRuntime struct {
	Language string   `json:"language"`
	Version  string   `json:"version"`
	Aliases  []string `json:"aliases"`
}

// normalizeLanguage maps common aliases onto Piston identifiers,
// defaulting to C++.
func normalizeLanguage(raw string) string {
	lang := strings.ToLower(strings.TrimSpace(raw))
	switch lang {
	case "", "c++", "cpp", "g++":
		return "cpp"
	default:
		return lang
	}
}

// Run executes the request and normalizes the result. Upstream failures
// never panic the caller: a timeout maps to ErrTimedOut, anything else
// unreachable to ErrUnavailable, and a non-OK upstream status comes back
// as a Response with OK=false plus the wrapped ErrUpstream.
func (c *Client) Run(ctx context.Context, req *Request) (*Response, error) {
	if req.Code == "" || len(req.Code) > maxCodeSize {
		return nil, ErrNoCode
	}

	language := normalizeLanguage(req.Language)
	version := strings.TrimSpace(req.Version)
	if version == "" {
		version = "*"
	}
	args := req.Args
	if len(args) > maxArgs {
		args = args[:maxArgs]
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.post(ctx, language, version, req.Code, req.Stdin, args)
	if err != nil {
		return nil, mapTransportErr(err)
	}

	if res.StatusCode == http.StatusBadRequest {
		// Piston rejects "*" for some languages. Resolve an exact version
		// from the runtimes listing and retry once.
		io.Copy(io.Discard, res.Body)
		res.Body.Close()

		if rt := c.lookupRuntime(ctx, language); rt != nil {
			res, err = c.post(ctx, rt.Language, rt.Version, req.Code, req.Stdin, args)
			if err != nil {
				return nil, mapTransportErr(err)
			}
		} else {
			res, err = c.post(ctx, language, version, req.Code, req.Stdin, args)
			if err != nil {
				return nil, mapTransportErr(err)
			}
		}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 2000))
		return &Response{
			OK:      false,
			Error:   fmt.Sprintf("upstream error (%d)", res.StatusCode),
			Details: string(body),
		}, fmt.Errorf("%w: status %d", ErrUpstream, res.StatusCode)
	}

	var result pistonResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, ErrUnavailable
	}

	out := &Response{OK: true, Language: language}
	if result.Compile != nil {
		out.Stdout += result.Compile.Stdout
		out.Stderr += result.Compile.Stderr
	}
	if result.Run != nil {
		out.Stdout += result.Run.Stdout
		out.Stderr += result.Run.Stderr
		out.Code = result.Run.Code
		out.Time = result.Run.Time
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, language, version, code, stdin string, args []string) (*http.Response, error) {
	body := pistonExecute{
		Language: language,
		Version:  version,
		Files:    []pistonFile{{Name: "main.cpp", Content: code}},
		Stdin:    stdin,
		Args:     args,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/execute", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.http.Do(req)
}

// lookupRuntime finds an installed runtime matching the language or one
// of its aliases. A lookup failure just skips the retry.
func (c *Client) lookupRuntime(ctx context.Context, language string) *pistonRuntime {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/runtimes", nil)
	if err != nil {
		return nil
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil
	}

	var runtimes []pistonRuntime
	if err := json.NewDecoder(res.Body).Decode(&runtimes); err != nil {
		return nil
	}
	for i := range runtimes {
		rt := &runtimes[i]
		if rt.Language == language {
			return rt
		}
		for _, alias := range rt.Aliases {
			if alias == language {
				return rt
			}
		}
	}
	return nil
}

func mapTransportErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimedOut
	}
	return ErrUnavailable
}
