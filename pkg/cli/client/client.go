/* Copyright 2025 Folio Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package client provides interfaces for interacting with the Folio server
// and the data structures for responses
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/folioapp/folio/pkg/cli/context"
	"github.com/folioapp/folio/pkg/cli/log"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// ErrInvalidLogin is an error for invalid credentials for login
var ErrInvalidLogin = errors.New("wrong credentials")

// ErrContentTypeMismatch is an error for an unexpected response content type
var ErrContentTypeMismatch = errors.New("content type mismatch")

// HTTPError represents an HTTP error response from the server
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf(`response %d "%s"`, e.StatusCode, e.Message)
}

// IsQuotaExceeded returns true if the error is a 403 quota rejection
func (e *HTTPError) IsQuotaExceeded() bool {
	return e.StatusCode == http.StatusForbidden
}

var contentTypeApplicationJSON = "application/json"
var contentTypeNone = ""

// requestOptions contains options for requests
type requestOptions struct {
	HTTPClient *http.Client
	// ExpectedContentType is the Content-Type that the client is expecting from the server
	ExpectedContentType *string
}

const (
	// clientRateLimitPerSecond is the max requests per second the client will make
	clientRateLimitPerSecond = 50
	// clientRateLimitBurst is the burst capacity for rate limiting
	clientRateLimitBurst = 100
)

// rateLimitedTransport wraps an http.RoundTripper with rate limiting
type rateLimitedTransport struct {
	transport http.RoundTripper
	limiter   *rate.Limiter
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.transport.RoundTrip(req)
}

// NewRateLimitedHTTPClient creates an HTTP client with rate limiting
func NewRateLimitedHTTPClient() *http.Client {
	interval := time.Second / time.Duration(clientRateLimitPerSecond)

	transport := &rateLimitedTransport{
		transport: http.DefaultTransport,
		limiter:   rate.NewLimiter(rate.Every(interval), clientRateLimitBurst),
	}
	return &http.Client{
		Transport: transport,
	}
}

func getHTTPClient(ctx context.FolioCtx, options *requestOptions) *http.Client {
	if options != nil && options.HTTPClient != nil {
		return options.HTTPClient
	}

	if ctx.HTTPClient != nil {
		return ctx.HTTPClient
	}

	return &http.Client{}
}

func getExpectedContentType(options *requestOptions) string {
	if options != nil && options.ExpectedContentType != nil {
		return *options.ExpectedContentType
	}

	return contentTypeApplicationJSON
}

func getReq(ctx context.FolioCtx, path, method, body string) (*http.Request, error) {
	endpoint := fmt.Sprintf("%s%s", ctx.APIEndpoint, path)
	req, err := http.NewRequest(method, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "constructing http request")
	}

	req.Header.Set("CLI-Version", ctx.Version)

	if ctx.SessionKey != "" {
		credential := fmt.Sprintf("Bearer %s", ctx.SessionKey)
		req.Header.Set("Authorization", credential)
	}

	return req, nil
}

// checkRespErr checks if the given http response indicates an error. It returns a boolean indicating
// if the response is an error, and a decoded error message.
func checkRespErr(res *http.Response) error {
	if res.StatusCode < 400 {
		return nil
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.Wrapf(err, "server responded with %d but client could not read the response body", res.StatusCode)
	}

	bodyStr := string(body)
	return &HTTPError{
		StatusCode: res.StatusCode,
		Message:    strings.TrimRight(bodyStr, "\n"),
	}
}

func checkContentType(res *http.Response, options *requestOptions) error {
	expected := getExpectedContentType(options)

	got := res.Header.Get("Content-Type")
	if got != expected {
		return errors.Wrapf(ErrContentTypeMismatch, "got: '%s' want: '%s'. Did you configure your endpoint correctly?", got, expected)
	}

	return nil
}

// doReq does a http request to the given path in the api endpoint
func doReq(ctx context.FolioCtx, method, path, body string, options *requestOptions) (*http.Response, error) {
	req, err := getReq(ctx, path, method, body)
	if err != nil {
		return nil, errors.Wrap(err, "getting request")
	}

	log.Debug("HTTP %s %s\n", method, path)

	hc := getHTTPClient(ctx, options)
	res, err := hc.Do(req)
	if err != nil {
		return res, errors.Wrap(err, "making http request")
	}

	log.Debug("HTTP %d %s\n", res.StatusCode, res.Status)

	if err = checkRespErr(res); err != nil {
		return res, errors.Wrap(err, "server responded with an error")
	}

	if err = checkContentType(res, options); err != nil {
		return res, errors.Wrap(err, "unexpected Content-Type")
	}

	return res, nil
}

// doAuthorizedReq does a http request to the given path in the api endpoint as a user,
// with the appropriate headers. The given path should include the preceding slash.
func doAuthorizedReq(ctx context.FolioCtx, method, path, body string, options *requestOptions) (*http.Response, error) {
	if ctx.SessionKey == "" {
		return nil, errors.New("no session key found")
	}

	return doReq(ctx, method, path, body, options)
}

// Record kinds accepted by the sync endpoint
const (
	KindBooks   = "books"
	KindConfigs = "configs"
	KindNotes   = "notes"
)

// BookRecord is a book as it travels on the wire. DeletedAt, UploadedAt and
// DownloadedAt are nil when not set.
type BookRecord struct {
	BookHash      string   `json:"book_hash"`
	Format        string   `json:"format"`
	Title         string   `json:"title"`
	Author        string   `json:"author"`
	GroupID       string   `json:"group_id,omitempty"`
	GroupName     string   `json:"group_name,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	ProgressCur   int64    `json:"progress_cur"`
	ProgressTotal int64    `json:"progress_total"`
	CreatedAt     int64    `json:"created_at"`
	UpdatedAt     int64    `json:"updated_at"`
	DeletedAt     *int64   `json:"deleted_at,omitempty"`
	UploadedAt    *int64   `json:"uploaded_at,omitempty"`
	DownloadedAt  *int64   `json:"downloaded_at,omitempty"`
}

// BookConfigRecord is a book configuration as it travels on the wire
type BookConfigRecord struct {
	BookHash     string `json:"book_hash"`
	Location     string `json:"location,omitempty"`
	Progress     string `json:"progress,omitempty"`
	SearchConfig string `json:"search_config,omitempty"`
	ViewSettings string `json:"view_settings,omitempty"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
	DeletedAt    *int64 `json:"deleted_at,omitempty"`
}

// BookNoteRecord is a bookmark or annotation as it travels on the wire
type BookNoteRecord struct {
	ID        string `json:"id"`
	BookHash  string `json:"book_hash"`
	Type      string `json:"type"`
	CFI       string `json:"cfi"`
	Text      string `json:"text,omitempty"`
	Style     string `json:"style,omitempty"`
	Color     string `json:"color,omitempty"`
	Note      string `json:"note,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
	DeletedAt *int64 `json:"deleted_at,omitempty"`
}

// SyncData is the payload for pushing local changes
type SyncData struct {
	Books   []BookRecord       `json:"books,omitempty"`
	Configs []BookConfigRecord `json:"configs,omitempty"`
	Notes   []BookNoteRecord   `json:"notes,omitempty"`
}

// SyncResult carries server records. On pull these are the changes since the
// watermark; on push these echo the post-merge authoritative records.
type SyncResult struct {
	Books   []BookRecord       `json:"books"`
	Configs []BookConfigRecord `json:"configs"`
	Notes   []BookNoteRecord   `json:"notes"`
}

// PullChanges fetches records the server has changed since the given
// timestamp. kind narrows the result to one record kind and book to one
// book; either may be empty.
func PullChanges(ctx context.FolioCtx, since int64, kind, book string) (SyncResult, error) {
	v := url.Values{}
	v.Set("since", strconv.FormatInt(since, 10))
	if kind != "" {
		v.Set("type", kind)
	}
	if book != "" {
		v.Set("book", book)
	}

	path := fmt.Sprintf("/api/sync?%s", v.Encode())
	res, err := doAuthorizedReq(ctx, "GET", path, "", nil)
	if err != nil {
		return SyncResult{}, errors.Wrap(err, "making the request")
	}

	var resp SyncResult
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return resp, errors.Wrap(err, "decoding payload")
	}

	return resp, nil
}

// PushChanges sends local changes to the server and returns the post-merge
// authoritative records
func PushChanges(ctx context.FolioCtx, data SyncData) (SyncResult, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return SyncResult{}, errors.Wrap(err, "marshaling payload")
	}

	res, err := doAuthorizedReq(ctx, "POST", "/api/sync", string(b), nil)
	if err != nil {
		return SyncResult{}, errors.Wrap(err, "posting changes to the server")
	}

	var resp SyncResult
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return resp, errors.Wrap(err, "decoding payload")
	}

	return resp, nil
}

// UploadGrantResp is the response from the upload grant endpoint
type UploadGrantResp struct {
	UploadURL string `json:"upload_url"`
	FileKey   string `json:"file_key"`
	Usage     int64  `json:"usage"`
	Quota     int64  `json:"quota"`
}

type uploadGrantPayload struct {
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	BookHash string `json:"book_hash"`
}

// GetUploadGrant requests a signed URL for uploading a file
func GetUploadGrant(ctx context.FolioCtx, fileName string, fileSize int64, bookHash string) (UploadGrantResp, error) {
	payload := uploadGrantPayload{
		FileName: fileName,
		FileSize: fileSize,
		BookHash: bookHash,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return UploadGrantResp{}, errors.Wrap(err, "marshaling payload")
	}

	res, err := doAuthorizedReq(ctx, "POST", "/api/storage/upload", string(b), nil)
	if err != nil {
		return UploadGrantResp{}, errors.Wrap(err, "requesting an upload grant")
	}

	var resp UploadGrantResp
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return UploadGrantResp{}, errors.Wrap(err, "decoding payload")
	}

	return resp, nil
}

// DownloadGrantResp is the response from the download grant endpoint
type DownloadGrantResp struct {
	DownloadURL string `json:"download_url"`
}

// GetDownloadGrant requests a signed URL for downloading a file
func GetDownloadGrant(ctx context.FolioCtx, fileKey string) (DownloadGrantResp, error) {
	v := url.Values{}
	v.Set("fileKey", fileKey)

	path := fmt.Sprintf("/api/storage/download?%s", v.Encode())
	res, err := doAuthorizedReq(ctx, "GET", path, "", nil)
	if err != nil {
		return DownloadGrantResp{}, errors.Wrap(err, "requesting a download grant")
	}

	var resp DownloadGrantResp
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return DownloadGrantResp{}, errors.Wrap(err, "decoding payload")
	}

	return resp, nil
}

type deleteBlobPayload struct {
	FileKey string `json:"file_key"`
}

// DeleteBlob removes a stored file on the server side
func DeleteBlob(ctx context.FolioCtx, fileKey string) error {
	payload := deleteBlobPayload{FileKey: fileKey}
	b, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshaling payload")
	}

	opts := requestOptions{
		ExpectedContentType: &contentTypeNone,
	}
	if _, err := doAuthorizedReq(ctx, "DELETE", "/api/storage/delete", string(b), &opts); err != nil {
		return errors.Wrap(err, "requesting a delete")
	}

	return nil
}

// SigninPayload is a payload for /api/signin
type SigninPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SigninResponse is a response from /api/signin endpoint
type SigninResponse struct {
	Key       string `json:"key"`
	ExpiresAt int64  `json:"expires_at"`
	UserID    string `json:"user_id"`
}

// Signin requests a session token
func Signin(ctx context.FolioCtx, email, password string) (SigninResponse, error) {
	payload := SigninPayload{
		Email:    email,
		Password: password,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return SigninResponse{}, errors.Wrap(err, "marshaling payload")
	}
	res, err := doReq(ctx, "POST", "/api/signin", string(b), nil)
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized {
			return SigninResponse{}, ErrInvalidLogin
		}
		return SigninResponse{}, errors.Wrap(err, "making http request")
	}

	var resp SigninResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return SigninResponse{}, errors.Wrap(err, "decoding payload")
	}

	return resp, nil
}

// Signout deletes a user session on the server side
func Signout(ctx context.FolioCtx, sessionKey string) error {
	// Share the transport (and thus the rate limiter) from ctx.HTTPClient but
	// do not follow redirects
	var hc *http.Client
	if ctx.HTTPClient != nil {
		hc = &http.Client{
			Transport: ctx.HTTPClient.Transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	} else {
		log.Warnf("No HTTP client configured for signout - falling back\n")
		hc = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	opts := requestOptions{
		HTTPClient:          hc,
		ExpectedContentType: &contentTypeNone,
	}
	_, err := doAuthorizedReq(ctx, "POST", "/api/signout", "", &opts)
	if err != nil {
		return errors.Wrap(err, "making http request")
	}

	return nil
}
