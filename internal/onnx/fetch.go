package onnx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultHubURL is the Hugging Face hub used to resolve bundle files.
const DefaultHubURL = "https://huggingface.co"

const lockFile = "download-manifest.lock.json"

type FetchOptions struct {
	Repo     string
	Revision string
	OutDir   string
	HFToken  string
	// HubURL overrides DefaultHubURL.
	HubURL string
	Stdout io.Writer
}

type AccessDeniedError struct {
	Repo string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied for %s; provide HF_TOKEN or --hf-token", e.Repo)
}

type lockManifest struct {
	Repo      string                `json:"repo"`
	Revision  string                `json:"revision"`
	Generated string                `json:"generated"`
	Files     map[string]lockRecord `json:"files"`
}

type lockRecord struct {
	Revision string `json:"revision"`
	SHA256   string `json:"sha256"`
}

var shaHexPattern = regexp.MustCompile(`(?i)^[a-f0-9]{64}$`)

type hubClient struct {
	http    *http.Client
	baseURL string
	token   string
}

// Fetch downloads voiceclone.json from a hub repository, then every file it
// references. Files whose checksum the hub publishes are verified; the rest
// are pinned on first download via the lock manifest in OutDir.
func Fetch(ctx context.Context, opts FetchOptions) error {
	if opts.Repo == "" {
		return errors.New("repo is required")
	}
	if opts.OutDir == "" {
		return errors.New("out dir is required")
	}
	if opts.Revision == "" {
		opts.Revision = "main"
	}
	if opts.HubURL == "" {
		opts.HubURL = DefaultHubURL
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return fmt.Errorf("create out dir: %w", err)
	}

	lockPath := filepath.Join(opts.OutDir, lockFile)
	lock := readLockManifest(lockPath)
	if lock.Repo != opts.Repo || lock.Revision != opts.Revision {
		lock.Files = map[string]lockRecord{}
	}
	lock.Repo = opts.Repo
	lock.Revision = opts.Revision
	lock.Generated = time.Now().UTC().Format(time.RFC3339)

	client := &hubClient{http: &http.Client{}, baseURL: strings.TrimRight(opts.HubURL, "/"), token: opts.HFToken}

	if err := client.fetchFile(ctx, opts, ManifestFile, &lock); err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Join(opts.OutDir, ManifestFile))
	if err != nil {
		return fmt.Errorf("read fetched manifest: %w", err)
	}

	manifest, err := parseManifest(data, opts.OutDir)
	if err != nil {
		return err
	}

	for _, name := range manifest.Files() {
		if err := client.fetchFile(ctx, opts, name, &lock); err != nil {
			return err
		}
	}

	if err := writeLockManifest(lockPath, lock); err != nil {
		return err
	}
	fmt.Fprintf(opts.Stdout, "wrote lock manifest: %s\n", lockPath)
	return nil
}

func (c *hubClient) fetchFile(ctx context.Context, opts FetchOptions, name string, lock *lockManifest) error {
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		return fmt.Errorf("bundle file %q must be a relative path inside the bundle", name)
	}

	expected, err := c.resolveChecksum(ctx, opts.Repo, opts.Revision, name)
	if err != nil {
		return err
	}
	if expected == "" {
		if lr, ok := lock.Files[name]; ok && lr.Revision == opts.Revision && isSHA256Hex(lr.SHA256) {
			expected = strings.ToLower(lr.SHA256)
		}
	}

	localPath := filepath.Join(opts.OutDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create local subdir: %w", err)
	}

	if expected != "" {
		ok, err := existingMatches(localPath, expected)
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintf(opts.Stdout, "skip %s (checksum match)\n", name)
			lock.Files[name] = lockRecord{Revision: opts.Revision, SHA256: expected}
			return nil
		}
	}

	fmt.Fprintf(opts.Stdout, "download %s@%s -> %s\n", name, opts.Revision, localPath)
	actual, err := c.download(ctx, opts.Repo, opts.Revision, name, localPath, opts.Stdout)
	if err != nil {
		return err
	}
	if expected != "" && actual != expected {
		return fmt.Errorf("checksum mismatch for %s: expected %s got %s", name, expected, actual)
	}

	fmt.Fprintf(opts.Stdout, "verified %s (sha256=%s)\n", name, actual)
	lock.Files[name] = lockRecord{Revision: opts.Revision, SHA256: actual}
	return nil
}

func (c *hubClient) download(ctx context.Context, repo, revision, name, outPath string, stdout io.Writer) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, repo, revision, name)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("download failed for %s: %s", name, resp.Status)
	}

	tmp := outPath + ".tmp"
	fh, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	h := sha256.New()
	pw := &progressWriter{out: stdout, total: resp.ContentLength}
	if _, err := io.Copy(io.MultiWriter(fh, h, pw), resp.Body); err != nil {
		_ = fh.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("download %s: %w", name, err)
	}

	if err := fh.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, outPath); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("move temp file into place: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// resolveChecksum returns the sha256 the hub advertises for name, or "" when
// it only publishes a non-sha256 etag.
func (c *hubClient) resolveChecksum(ctx context.Context, repo, revision, name string) (string, error) {
	resp, err := c.do(ctx, http.MethodHead, repo, revision, name)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 399 {
		return "", fmt.Errorf("metadata request failed for %s: %s", name, resp.Status)
	}

	for _, key := range []string{"X-Linked-Etag", "Etag"} {
		if v := normalizeETag(resp.Header.Get(key)); isSHA256Hex(v) {
			return strings.ToLower(v), nil
		}
	}

	return "", nil
}

func (c *hubClient) do(ctx context.Context, method, repo, revision, name string) (*http.Response, error) {
	url := fmt.Sprintf("%s/%s/resolve/%s/%s", c.baseURL, repo, revision, name)
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s failed: %w", name, err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return nil, &AccessDeniedError{Repo: repo}
	}

	return resp, nil
}

type progressWriter struct {
	out       io.Writer
	total     int64
	written   int64
	lastPrint time.Time
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if time.Since(p.lastPrint) > 700*time.Millisecond {
		if p.total > 0 {
			pct := float64(p.written) * 100 / float64(p.total)
			fmt.Fprintf(p.out, "  progress: %.1f%% (%s/%s)\n", pct,
				humanize.Bytes(uint64(p.written)), humanize.Bytes(uint64(p.total)))
		} else {
			fmt.Fprintf(p.out, "  progress: %s\n", humanize.Bytes(uint64(p.written)))
		}
		p.lastPrint = time.Now()
	}
	return len(b), nil
}

func existingMatches(path, expected string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat existing file: %w", err)
	}
	if fi.IsDir() {
		return false, fmt.Errorf("expected file at %s, found directory", path)
	}
	actual, err := fileSHA256(path)
	if err != nil {
		return false, err
	}
	return actual == expected, nil
}

func normalizeETag(v string) string {
	v = strings.TrimSpace(v)
	v = strings.Trim(v, "\"")
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, "\"")
	return v
}

func isSHA256Hex(v string) bool {
	return shaHexPattern.MatchString(v)
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read file for checksum: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func readLockManifest(path string) lockManifest {
	b, err := os.ReadFile(path)
	if err != nil {
		return lockManifest{Files: map[string]lockRecord{}}
	}
	var out lockManifest
	if err := json.Unmarshal(b, &out); err != nil {
		return lockManifest{Files: map[string]lockRecord{}}
	}
	if out.Files == nil {
		out.Files = map[string]lockRecord{}
	}
	return out
}

func writeLockManifest(path string, lock lockManifest) error {
	b, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return fmt.Errorf("encode lock manifest: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write lock manifest: %w", err)
	}
	return nil
}
