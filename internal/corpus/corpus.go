// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package corpus is the HTTP client for the remote corpus: a file store
// plus the search index built over it. The reconciliation engine only
// sees this package's surface; wire details stay here.
package corpus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/mvanek/helpsync/internal/httputil"
	"github.com/mvanek/helpsync/pkg/types"
)

// uploadPurpose tags uploaded files for search-index consumption.
const uploadPurpose = "search"

// APIError is a non-2xx response from the remote API. Status is kept so
// callers can distinguish not-found from transient failures.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: remote API returned HTTP %d: %s", e.Op, e.Status, e.Body)
}

// IsNotFound reports whether err is an APIError with HTTP 404.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Status == http.StatusNotFound
}

// FileInfo describes one file in the remote store.
type FileInfo struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Bytes    int64  `json:"bytes"`
}

// Entry is one search-index entry: the entry's own id plus the store
// file it indexes.
type Entry struct {
	EntryID string `json:"id"`
	FileID  string `json:"file_id"`
}

// Client talks to the remote corpus API.
type Client struct {
	http    *http.Client
	baseURL string
	indexID string
	apiKey  string
	agent   string
}

// NewClient builds a Client from config. The base URL is normalized to
// have no trailing slash.
func NewClient(cfg types.CorpusConfig) *Client {
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		indexID: cfg.IndexID,
		apiKey:  cfg.APIKey,
		agent:   cfg.UserAgent,
	}
}

// RemoteName maps a logical markdown name to the plain-text name the
// remote store indexes (`1001.md` → `1001.txt`). The suffix mapping is
// the join key between ledger records and remote entries, so it lives
// in exactly one place.
func RemoteName(logicalName string) string {
	return strings.TrimSuffix(logicalName, ".md") + ".txt"
}

// Upload sends payload to the file store under the remote variant of
// logicalName and returns the new file id.
func (c *Client) Upload(ctx context.Context, logicalName string, payload []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("purpose", uploadPurpose); err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}
	part, err := mw.CreateFormFile("file", RemoteName(logicalName))
	if err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", &body)
	if err != nil {
		return "", fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setHeaders(req)

	// No retry wrapper here: the multipart body is consumed on the
	// first attempt, and a failed upload is already a per-item failure.
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	var file FileInfo
	if err := decode(resp, "upload", &file); err != nil {
		return "", err
	}
	return file.ID, nil
}

// Delete removes a file from the store. Deleting an already-gone file
// counts as success: absence is the desired post-condition either way.
func (c *Client) Delete(ctx context.Context, fileID string) (bool, error) {
	err := c.do(ctx, http.MethodDelete, "/files/"+fileID, nil, nil)
	if err != nil {
		if IsNotFound(err) {
			return true, nil
		}
		return false, err
	}
	return true, nil
}

// FileInfo fetches the store record for a file id.
func (c *Client) FileInfo(ctx context.Context, fileID string) (FileInfo, error) {
	var file FileInfo
	if err := c.do(ctx, http.MethodGet, "/files/"+fileID, nil, &file); err != nil {
		return FileInfo{}, err
	}
	return file, nil
}

// ListFiles returns every file in the store, following pagination.
func (c *Client) ListFiles(ctx context.Context) ([]FileInfo, error) {
	var all []FileInfo
	after := ""
	for {
		var page struct {
			Data    []FileInfo `json:"data"`
			HasMore bool       `json:"has_more"`
		}
		path := "/files"
		if after != "" {
			path += "?after=" + url.QueryEscape(after)
		}
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		if !page.HasMore || len(page.Data) == 0 {
			return all, nil
		}
		after = page.Data[len(page.Data)-1].ID
	}
}

// IndexAdd attaches a store file to the search index and returns the
// new entry id.
func (c *Client) IndexAdd(ctx context.Context, fileID string) (string, error) {
	reqBody := map[string]string{"file_id": fileID}
	var entry Entry
	if err := c.do(ctx, http.MethodPost, c.entriesPath(), reqBody, &entry); err != nil {
		return "", err
	}
	return entry.EntryID, nil
}

// IndexRemove detaches an entry from the search index. A 404 counts as
// success (idempotent remove).
func (c *Client) IndexRemove(ctx context.Context, entryID string) (bool, error) {
	err := c.do(ctx, http.MethodDelete, c.entriesPath()+"/"+entryID, nil, nil)
	if err != nil {
		if IsNotFound(err) {
			return true, nil
		}
		return false, err
	}
	return true, nil
}

// ListEntries returns every entry in the search index, following
// pagination.
func (c *Client) ListEntries(ctx context.Context) ([]Entry, error) {
	var all []Entry
	after := ""
	for {
		var page struct {
			Data    []Entry `json:"data"`
			HasMore bool    `json:"has_more"`
		}
		path := c.entriesPath()
		if after != "" {
			path += "?after=" + url.QueryEscape(after)
		}
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		if !page.HasMore || len(page.Data) == 0 {
			return all, nil
		}
		after = page.Data[len(page.Data)-1].EntryID
	}
}

func (c *Client) entriesPath() string {
	return "/search_indexes/" + c.indexID + "/entries"
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.agent != "" {
		req.Header.Set("User-Agent", c.agent)
	}
}

// do issues a JSON request with retry on transient statuses and decodes
// the response into out (when out is non-nil).
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setHeaders(req)

	resp, err := httputil.DoWithRetry(ctx, c.http, req, 0)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	return decode(resp, method+" "+path, out)
}

// decode checks the status and unmarshals the body into out.
func decode(resp *http.Response, op string, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: parsing response: %w", op, err)
	}
	return nil
}
