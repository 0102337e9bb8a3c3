// Package decision drives the external policy decision engine: an
// embedded OPA-compatible binary invoked as a subprocess, or a remote
// OPA-compatible HTTP server. Grounded on
// original_source/aicertify/opa_core/evaluator.py's OpaEvaluator
// (_verify_opa_installation, evaluate_policy, _evaluate_with_external_opa)
// and on internal/eval/runner.go's subprocess invocation idiom
// (exec.CommandContext, buffered stdout/stderr capture, timeout via
// context).
package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/Principled-Evolution/aicertify/internal/logging"
)

// ErrEngineBinaryMissing is returned by NewEmbeddedDriver when no OPA
// binary could be resolved via OPA_PATH, the fixed per-OS install
// locations, or PATH.
var ErrEngineBinaryMissing = errors.New("decision: engine binary not found")

// RecommendEmptyReport is the canned recommendation the Python original
// emits when a policy defines only an `allow` rule and no
// `compliance_report` rule, so downstream extraction still has
// something structured to show.
const RecommendEmptyReport = "Update the policy to include a detailed compliance_report rule for better evaluation results"

// Driver evaluates policies against input documents using either an
// embedded binary (subprocess mode) or a remote decision-engine server
// (HTTP mode).
type Driver struct {
	// BinaryPath is the resolved path to the embedded engine binary.
	// Empty when UseServer is true.
	BinaryPath string

	// UseServer switches to remote HTTP server mode.
	UseServer bool
	ServerURL string

	// Debug forces ModeDebug regardless of the mode an individual
	// Evaluate call requests, mirroring the Python constructor's debug flag.
	Debug bool

	// Timeout bounds a single subprocess invocation. Zero means no
	// additional timeout beyond the caller's context.
	Timeout time.Duration

	httpClient *http.Client
}

// NewEmbeddedDriver resolves the embedded engine binary per
// _verify_opa_installation's search order: OPA_PATH env var, OS-specific
// fixed install locations, then PATH lookup.
func NewEmbeddedDriver() (*Driver, error) {
	path, err := resolveBinary()
	if err != nil {
		return nil, err
	}
	return &Driver{BinaryPath: path, Timeout: 2 * time.Minute}, nil
}

// NewServerDriver targets a remote decision-engine HTTP server.
func NewServerDriver(serverURL string) *Driver {
	return &Driver{
		UseServer:  true,
		ServerURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		Timeout:    30 * time.Second,
	}
}

func resolveBinary() (string, error) {
	log := logging.For("decision")

	if envPath := os.Getenv("OPA_PATH"); envPath != "" {
		if isExecutable(envPath) {
			log.Info("using engine binary from OPA_PATH", "path", envPath)
			return envPath, nil
		}
	}

	var fixedPaths []string
	switch runtime.GOOS {
	case "windows":
		fixedPaths = []string{`C:\opa\opa_windows_amd64.exe`, `C:\opa\opa.exe`}
	case "linux":
		fixedPaths = []string{"/usr/local/bin/opa"}
	}
	for _, p := range fixedPaths {
		if isExecutable(p) {
			log.Info("using engine binary at fixed path", "path", p)
			return p, nil
		}
	}

	if _, err := os.Stat("/mnt/c"); err == nil {
		for _, p := range []string{"/mnt/c/opa/opa.exe", "/mnt/c/opa/opa_windows_amd64.exe"} {
			if isExecutable(p) {
				log.Info("using engine binary via WSL Windows mount", "path", p)
				return p, nil
			}
		}
	}

	if found, err := exec.LookPath("opa"); err == nil {
		log.Info("using engine binary from PATH", "path", found)
		return found, nil
	}

	return "", fmt.Errorf("%w: set OPA_PATH, install to a fixed location for your OS, or add 'opa' to PATH", ErrEngineBinaryMissing)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}

// Result is the outcome of one policy evaluation.
type Result struct {
	Decision map[string]any
	Err      string
	Stderr   string
	Command  string
	Files    []string
}

// Evaluate runs the given query against the supplied policy files
// (already including their dependency closure) with input, in mode.
// It implements the Python original's retry chain: on an optimization
// failure it retries without optimization, on any other non-zero exit
// or empty stdout it retries once in debug mode, and on an empty JSON
// result it probes the package's `allow` rule to synthesize a minimal
// decision.
func (d *Driver) Evaluate(ctx context.Context, query string, files []string, input any, mode Mode, entrypoint string) (*Result, error) {
	if d.Debug {
		mode = ModeDebug
	}
	if d.UseServer {
		return d.evaluateRemote(ctx, query, input)
	}
	return d.evaluateLocal(ctx, query, files, input, mode, entrypoint, true)
}

func (d *Driver) evaluateLocal(ctx context.Context, query string, files []string, input any, mode Mode, entrypoint string, allowRetry bool) (*Result, error) {
	log := logging.For("decision")

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal input: %w", err)
	}

	args := []string{"eval", query}
	for _, f := range files {
		args = append(args, "-d", f)
	}

	optimized := false
	switch mode {
	case ModeDevelopment:
		args = append(args, "--explain", "fails", "--coverage", "--format", "pretty")
	case ModeDebug:
		args = append(args, "--explain", "full", "--coverage", "--metrics", "--instrument", "--format", "pretty")
	default:
		args = append(args, "--format", "json", "--fail")
		if entrypoint != "" {
			args = append(args, "--optimize", "2")
			optimized = true
		}
	}
	args = append(args, "--stdin-input")
	if optimized && entrypoint != "" {
		args = append(args, "-e", entrypoint)
	}

	cmdCtx := ctx
	var cancel context.CancelFunc
	if d.Timeout > 0 {
		cmdCtx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(cmdCtx, d.BinaryPath, args...)
	cmd.Stdin = bytes.NewReader(inputJSON)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	cmdStr := d.BinaryPath + " " + strings.Join(args, " ")
	runErr := cmd.Run()
	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	if exitCode != 0 || runErr != nil {
		stderrStr := stderr.String()
		log.Error("engine command failed", "exit_code", exitCode, "stderr", stderrStr)

		if optimized && strings.Contains(stderrStr, "bundle optimizations require at least one entrypoint") {
			log.Warn("retrying without optimization")
			return d.evaluateLocal(ctx, query, files, input, mode, "", allowRetry)
		}

		if allowRetry && mode != ModeDebug {
			log.Info("retrying in debug mode for diagnostics")
			return d.evaluateLocal(ctx, query, files, input, ModeDebug, "", false)
		}

		return &Result{
			Err:     fmt.Sprintf("engine execution returned non-zero exit code: %d", exitCode),
			Stderr:  stderrStr,
			Command: cmdStr,
			Files:   files,
		}, nil
	}

	if stderr.Len() > 0 {
		log.Warn("engine stderr (non-fatal)", "stderr", stderr.String())
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		log.Warn("engine returned empty output")
		if allowRetry && mode != ModeDebug {
			return d.evaluateLocal(ctx, query, files, input, ModeDebug, "", false)
		}
		return &Result{
			Decision: map[string]any{
				"result": false,
				"error":  "empty result from decision engine",
			},
			Command: cmdStr,
			Files:   files,
		}, nil
	}

	if mode != ModeProduction {
		return &Result{
			Decision: map[string]any{"result": out, "format": "pretty"},
			Command:  cmdStr,
			Files:    files,
		}, nil
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return &Result{
			Decision: map[string]any{"result": out, "format": "raw", "parse_error": err.Error()},
			Command:  cmdStr,
			Files:    files,
		}, nil
	}

	if len(parsed) == 0 {
		log.Warn("engine returned empty JSON object, probing allow rule")
		return d.probeAllow(cmdCtx, query, files, inputJSON, cmdStr)
	}

	return &Result{Decision: parsed, Command: cmdStr, Files: files}, nil
}

// probeAllow is the fallback path for a policy that defines only
// `allow` and not `compliance_report`: it re-queries `<package>.allow`
// and synthesizes a minimal decision document so the extractor always
// has a shape to work with.
func (d *Driver) probeAllow(ctx context.Context, query string, files []string, inputJSON []byte, cmdStr string) (*Result, error) {
	log := logging.For("decision")

	pkg := ""
	if idx := strings.Index(query, "data."); idx >= 0 {
		rest := query[idx+len("data."):]
		if dot := strings.LastIndex(rest, "."); dot >= 0 {
			pkg = rest[:dot]
		}
	}
	allowQuery := fmt.Sprintf("data.%s.allow", pkg)

	args := []string{"eval", allowQuery}
	for _, f := range files {
		args = append(args, "-d", f)
	}
	args = append(args, "--format", "json", "--stdin-input")

	cmd := exec.CommandContext(ctx, d.BinaryPath, args...)
	cmd.Stdin = bytes.NewReader(inputJSON)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	allowValue := false
	details := "Policy only has an 'allow' rule but no 'compliance_report' rule"
	if err := cmd.Run(); err == nil {
		var parsed struct {
			Result []struct {
				Expressions []struct {
					Value bool `json:"value"`
				} `json:"expressions"`
			} `json:"result"`
		}
		if json.Unmarshal(stdout.Bytes(), &parsed) == nil && len(parsed.Result) > 0 && len(parsed.Result[0].Expressions) > 0 {
			allowValue = parsed.Result[0].Expressions[0].Value
			details = fmt.Sprintf("Policy evaluation succeeded with 'allow' rule: %v", allowValue)
		}
	} else {
		log.Error("allow-rule probe failed", "error", err)
	}

	policyName := ""
	if len(files) > 0 {
		policyName = strings.TrimSuffix(filepath.Base(files[0]), ".rego")
	}

	return &Result{
		Decision: map[string]any{
			"result": []any{
				map[string]any{
					"expressions": []any{
						map[string]any{
							"value": map[string]any{
								"policy":         policyName,
								"overall_result": allowValue,
								"detailed_results": map[string]any{
									"compliance": map[string]any{
										"result":  allowValue,
										"details": details,
									},
								},
								"recommendations": []string{RecommendEmptyReport},
							},
						},
					},
				},
			},
		},
		Command: cmdStr,
		Files:   files,
	}, nil
}

func (d *Driver) httpClientOrDefault() *http.Client {
	if d.httpClient == nil {
		d.httpClient = &http.Client{Timeout: d.Timeout}
	}
	return d.httpClient
}

func (d *Driver) evaluateRemote(ctx context.Context, dataPath string, input any) (*Result, error) {
	log := logging.For("decision")

	url := fmt.Sprintf("%s/v1/data/%s", d.ServerURL, strings.TrimPrefix(strings.TrimPrefix(dataPath, "data."), "/"))
	body, err := json.Marshal(map[string]any{"input": input})
	if err != nil {
		return nil, fmt.Errorf("marshal input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClientOrDefault().Do(req)
	if err != nil {
		log.Error("error connecting to decision engine server", "error", err, "url", url)
		return &Result{Err: fmt.Sprintf("error connecting to decision engine server: %v", err)}, nil
	}
	defer resp.Body.Close()

	var parsed map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return &Result{Err: fmt.Sprintf("decode decision engine response: %v", err)}, nil
	}

	if resp.StatusCode != http.StatusOK {
		log.Error("decision engine server returned non-200", "status", resp.StatusCode)
		return &Result{Err: fmt.Sprintf("decision engine server returned status %d", resp.StatusCode)}, nil
	}

	return &Result{Decision: parsed}, nil
}

// UploadPolicy puts a policy's content to a remote decision-engine
// server, grounded on _upload_policies_to_server.
func (d *Driver) UploadPolicy(ctx context.Context, name, content string) error {
	if !d.UseServer {
		return fmt.Errorf("UploadPolicy requires server mode")
	}
	url := fmt.Sprintf("%s/v1/policies/%s", d.ServerURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, strings.NewReader(content))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := d.httpClientOrDefault().Do(req)
	if err != nil {
		return fmt.Errorf("upload policy %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("upload policy %s: server returned status %d", name, resp.StatusCode)
	}
	return nil
}
