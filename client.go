package qci

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/etaoni/qci/internal/clock"
	"github.com/etaoni/qci/internal/constant"
	"github.com/google/uuid"
)

const (
	DefaultBaseURL         = constant.DefaultBaseURL
	DefaultTimeout         = constant.DefaultTimeout
	DefaultBulkConcurrency = constant.DefaultBulkConcurrency
)

const (
	viewPDF       = "pdf"
	viewReportXML = "reportXml"
	dateLayout    = constant.DefaultReportDateLayout
)

// Client is an interface for interacting with the QIAGEN Clinical Insight (QCI) REST API.
// Every method performs a single synchronous HTTP request bound to ctx and the client's per-request timeout.
type Client interface {
	// GetAccessToken exchanges API key credentials for a bearer access token.
	GetAccessToken(ctx context.Context, params *GetAccessTokenInput) (*GetAccessTokenOutput, error)
	// UploadDataPackage validates, serializes and uploads a data package.
	UploadDataPackage(ctx context.Context, params *UploadDataPackageInput) (*UploadDataPackageOutput, error)
	// GetSubmissionStatus gets the pipeline status of a submitted data package.
	GetSubmissionStatus(ctx context.Context, params *GetSubmissionStatusInput) (*GetSubmissionStatusOutput, error)
	// GetReportPDF downloads the PDF report of a test and writes it to a file.
	GetReportPDF(ctx context.Context, params *GetReportPDFInput) (*GetReportPDFOutput, error)
	// GetTestResultXML downloads the XML export of a test and parses it.
	GetTestResultXML(ctx context.Context, params *GetTestResultXMLInput) (*GetTestResultXMLOutput, error)
	// ListTests lists clinical tests matching the given filters.
	ListTests(ctx context.Context, params *ListTestsInput) (*ListTestsOutput, error)
	// ShareTest shares a test with other QCI users.
	ShareTest(ctx context.Context, params *ShareTestInput) (*ShareTestOutput, error)
	// GetTestProductProfiles lists the test product profiles available to the account.
	GetTestProductProfiles(ctx context.Context, params *GetTestProductProfilesInput) (*GetTestProductProfilesOutput, error)
}

// ClientOptions defines configuration options for the QCI client.
//
// Note: Clock and RequestIDGenerator are primarily used for testing purposes.
type ClientOptions struct {
	// BaseURL is the root of the QCI API. Defaults to https://api.ingenuity.com/.
	BaseURL string
	// HTTPClient is the client used to send requests. Defaults to a new http.Client.
	HTTPClient *http.Client
	// Timeout bounds every request. A zero or negative value disables the per-request timeout.
	Timeout time.Duration
	// Logger receives request logs. Defaults to a logger that discards everything.
	Logger *slog.Logger
	// TempDir is where data package files are staged before upload. Defaults to os.TempDir().
	TempDir string

	// Clock is an abstraction of time operations, used for default report filenames.
	Clock clock.Clock
	// RequestIDGenerator generates the X-Request-ID of each request. Defaults to uuid.NewString.
	RequestIDGenerator func() string
}

// WithBaseURL is an option function to point the client at another QCI API root, such as a sandbox.
func WithBaseURL(baseURL string) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.BaseURL = baseURL
	}
}

// WithHTTPClient is an option function to set the http.Client used for all requests.
func WithHTTPClient(client *http.Client) func(*ClientOptions) {
	return func(o *ClientOptions) {
		if client != nil {
			o.HTTPClient = client
		}
	}
}

// WithTimeout is an option function to set the per-request timeout.
// By default, each request is limited to 30 seconds.
func WithTimeout(timeout time.Duration) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.Timeout = timeout
	}
}

// WithLogger is an option function to set the structured logger of the client.
// Requests are logged at debug level and failures at warn level.
func WithLogger(logger *slog.Logger) func(*ClientOptions) {
	return func(o *ClientOptions) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithTempDir is an option function to set the directory where data packages are staged before upload.
func WithTempDir(dir string) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.TempDir = dir
	}
}

// WithClock is an option function to replace the clock of the client.
func WithClock(c clock.Clock) func(*ClientOptions) {
	return func(o *ClientOptions) {
		if c != nil {
			o.Clock = c
		}
	}
}

// WithRequestIDGenerator is an option function to set how X-Request-ID values are generated.
func WithRequestIDGenerator(gen func() string) func(*ClientOptions) {
	return func(o *ClientOptions) {
		if gen != nil {
			o.RequestIDGenerator = gen
		}
	}
}

// NewClient creates a new QCI client with default settings, which can be customized using option functions.
// It returns an error if the base URL cannot be parsed.
func NewClient(optFns ...func(*ClientOptions)) (Client, error) {
	o := &ClientOptions{
		BaseURL:            DefaultBaseURL,
		HTTPClient:         &http.Client{},
		Timeout:            DefaultTimeout,
		Logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		TempDir:            os.TempDir(),
		Clock:              &clock.RealClock{},
		RequestIDGenerator: uuid.NewString,
	}
	for _, opt := range optFns {
		opt(o)
	}
	base, err := url.Parse(strings.TrimSpace(o.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", o.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", o.BaseURL)
	}
	return &ClientImpl{
		baseURL:    base,
		httpClient: o.HTTPClient,
		timeout:    o.Timeout,
		logger:     o.Logger,
		tempDir:    o.TempDir,
		clock:      o.Clock,
		requestID:  o.RequestIDGenerator,
	}, nil
}

// ClientImpl is a concrete implementation of the qci.Client interface.
// Note: ClientImpl cannot be used directly. Always use the qci.NewClient function to create an instance.
type ClientImpl struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	tempDir    string
	clock      clock.Clock
	requestID  func() string
}

// GetAccessTokenInput represents the input parameters for retrieving an access token.
// The credentials can be found in the QCI API explorer.
type GetAccessTokenInput struct {
	// ClientID is the QCI API key ID.
	ClientID string
	// ClientSecret is the QCI API key secret.
	ClientSecret string
}

// GetAccessTokenOutput represents the result of an access token request.
type GetAccessTokenOutput struct {
	// AccessToken is the bearer token to pass to every other operation.
	AccessToken string
}

type accessTokenResponse struct {
	AccessToken string `json:"access_token"`
}

// GetAccessToken exchanges a client ID and secret for an access token using the client credentials grant.
// A rejected request or a response without an access token is reported as an AuthenticationError.
func (c *ClientImpl) GetAccessToken(ctx context.Context, params *GetAccessTokenInput) (*GetAccessTokenOutput, error) {
	if params == nil {
		params = &GetAccessTokenInput{}
	}
	if params.ClientID == "" || params.ClientSecret == "" {
		return &GetAccessTokenOutput{}, ValidationError{Msg: "client ID and client secret are required"}
	}
	query := url.Values{}
	query.Set("grant_type", constant.GrantTypeClientCredentials)
	query.Set("client_id", params.ClientID)
	query.Set("client_secret", params.ClientSecret)

	resp, err := c.send(ctx, http.MethodGet, "/v1/oauth/access_token", query, "", nil, "")
	if err != nil {
		return &GetAccessTokenOutput{}, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &GetAccessTokenOutput{}, AuthenticationError{StatusCode: resp.StatusCode}
	}
	var out accessTokenResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return &GetAccessTokenOutput{}, MalformedResponseError{Cause: err}
	}
	if out.AccessToken == "" {
		return &GetAccessTokenOutput{}, AuthenticationError{
			StatusCode: resp.StatusCode,
			Cause:      errors.New("response does not contain an access token"),
		}
	}
	return &GetAccessTokenOutput{AccessToken: out.AccessToken}, nil
}

// UploadDataPackageInput represents the input parameters for uploading a data package.
type UploadDataPackageInput struct {
	// DataPackage is the submission to upload. Its access token authorizes the request.
	DataPackage *DataPackage
}

// UploadDataPackageOutput represents the result of a data package upload.
type UploadDataPackageOutput struct {
	// Status is the initial status of the submission as reported by QCI.
	Status *SubmissionStatus
}

// UploadDataPackage validates the data package, stages its XML in a temporary file and posts that file
// as multipart form data. The temporary file is removed before the method returns.
// An invalid package is rejected with a ValidationError before any request is made.
func (c *ClientImpl) UploadDataPackage(ctx context.Context, params *UploadDataPackageInput) (*UploadDataPackageOutput, error) {
	if params == nil || params.DataPackage == nil {
		return &UploadDataPackageOutput{}, ValidationError{Msg: "data package was not provided"}
	}
	pkg := *params.DataPackage
	if err := pkg.Validate(); err != nil {
		return &UploadDataPackageOutput{}, err
	}
	payload, err := pkg.ToXML()
	if err != nil {
		return &UploadDataPackageOutput{}, ValidationError{ID: pkg.PrimaryID, Msg: err.Error()}
	}
	body, contentType, err := c.stageDataPackage(payload)
	if err != nil {
		return &UploadDataPackageOutput{}, err
	}
	resp, err := c.send(ctx, http.MethodPost, "/v1/datapackages", nil, pkg.AccessToken, body, contentType)
	if err != nil {
		return &UploadDataPackageOutput{}, err
	}
	var status SubmissionStatus
	if err := resp.decodeJSON(&status); err != nil {
		return &UploadDataPackageOutput{}, err
	}
	return &UploadDataPackageOutput{Status: &status}, nil
}

// stageDataPackage writes the payload to a temporary file and builds the multipart body from it.
func (c *ClientImpl) stageDataPackage(payload []byte) (io.Reader, string, error) {
	f, err := os.CreateTemp(c.tempDir, constant.DefaultTempFilePattern)
	if err != nil {
		return nil, "", FileError{Path: c.tempDir, Cause: err}
	}
	defer func() {
		_ = f.Close()
		if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			c.logger.Warn("failed to remove staged data package", "path", f.Name(), "error", rmErr)
		}
	}()
	if _, err := f.Write(payload); err != nil {
		return nil, "", FileError{Path: f.Name(), Cause: err}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, "", FileError{Path: f.Name(), Cause: err}
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(f.Name()))
	if err != nil {
		return nil, "", FileError{Path: f.Name(), Cause: err}
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", FileError{Path: f.Name(), Cause: err}
	}
	if err := mw.Close(); err != nil {
		return nil, "", FileError{Path: f.Name(), Cause: err}
	}
	return &buf, mw.FormDataContentType(), nil
}

// GetSubmissionStatusInput represents the input parameters for checking a submission.
type GetSubmissionStatusInput struct {
	// AccessToken authorizes the request.
	AccessToken string
	// ID is either the data package ID or the accession ID of the sample.
	ID string
}

// GetSubmissionStatusOutput represents the result of a status check.
type GetSubmissionStatusOutput struct {
	// Status is the current status of the submission.
	Status *SubmissionStatus
}

// GetSubmissionStatus gets the current pipeline status and completion percentage of a submission.
func (c *ClientImpl) GetSubmissionStatus(ctx context.Context, params *GetSubmissionStatusInput) (*GetSubmissionStatusOutput, error) {
	if params == nil {
		params = &GetSubmissionStatusInput{}
	}
	if err := checkIdentified(params.AccessToken, params.ID); err != nil {
		return &GetSubmissionStatusOutput{}, err
	}
	resp, err := c.send(ctx, http.MethodGet, "/v1/datapackages/"+params.ID, nil, params.AccessToken, nil, "")
	if err != nil {
		return &GetSubmissionStatusOutput{}, err
	}
	var status SubmissionStatus
	if err := resp.decodeJSON(&status); err != nil {
		return &GetSubmissionStatusOutput{}, err
	}
	return &GetSubmissionStatusOutput{Status: &status}, nil
}

// GetReportPDFInput represents the input parameters for downloading a PDF report.
type GetReportPDFInput struct {
	// AccessToken authorizes the request.
	AccessToken string
	// ID is either the data package ID or the accession ID of the sample.
	ID string
	// Filename is where the report is written. When empty, <ID>_<YYYY-MM-DD>.pdf is used.
	Filename string
	// OutputDir is the directory of the default filename. It is ignored when Filename is set.
	OutputDir string
}

// GetReportPDFOutput represents the result of a PDF report download.
type GetReportPDFOutput struct {
	// Path is the absolute path of the written report.
	Path string
	// Size is the number of bytes written.
	Size int
}

// GetReportPDF downloads the PDF report of a test and writes it to a file.
// When no filename is given the report is named after the ID and the current date.
func (c *ClientImpl) GetReportPDF(ctx context.Context, params *GetReportPDFInput) (*GetReportPDFOutput, error) {
	if params == nil {
		params = &GetReportPDFInput{}
	}
	if err := checkIdentified(params.AccessToken, params.ID); err != nil {
		return &GetReportPDFOutput{}, err
	}
	filename := params.Filename
	if filename == "" {
		filename = filepath.Join(params.OutputDir, DefaultReportFilename(params.ID, c.clock.Now()))
	}
	resp, err := c.send(ctx, http.MethodGet, "/v1/export/"+params.ID, exportQuery(viewPDF, params.AccessToken), params.AccessToken, nil, "")
	if err != nil {
		return &GetReportPDFOutput{}, err
	}
	if err := os.WriteFile(filename, resp.Body, 0o644); err != nil {
		return &GetReportPDFOutput{}, FileError{Path: filename, Cause: err}
	}
	path, err := filepath.Abs(filename)
	if err != nil {
		return &GetReportPDFOutput{}, FileError{Path: filename, Cause: err}
	}
	return &GetReportPDFOutput{Path: path, Size: len(resp.Body)}, nil
}

// DefaultReportFilename returns the filename used for a PDF report of id downloaded at now.
func DefaultReportFilename(id string, now time.Time) string {
	return fmt.Sprintf("%s_%s.pdf", id, now.Format(dateLayout))
}

// GetTestResultXMLInput represents the input parameters for downloading the XML result of a test.
type GetTestResultXMLInput struct {
	// AccessToken authorizes the request.
	AccessToken string
	// ID is either the data package ID or the accession ID of the sample.
	ID string
}

// GetTestResultXMLOutput represents the parsed XML result of a test.
type GetTestResultXMLOutput struct {
	// Report holds the patient, specimen and variant fields of the result.
	Report *Report
}

// GetTestResultXML downloads the reportXml export of a test and parses it into a Report.
func (c *ClientImpl) GetTestResultXML(ctx context.Context, params *GetTestResultXMLInput) (*GetTestResultXMLOutput, error) {
	if params == nil {
		params = &GetTestResultXMLInput{}
	}
	if err := checkIdentified(params.AccessToken, params.ID); err != nil {
		return &GetTestResultXMLOutput{}, err
	}
	resp, err := c.send(ctx, http.MethodGet, "/v1/export/"+params.ID, exportQuery(viewReportXML, params.AccessToken), params.AccessToken, nil, "")
	if err != nil {
		return &GetTestResultXMLOutput{}, err
	}
	report, err := ParseReport(resp.Body)
	if err != nil {
		return &GetTestResultXMLOutput{}, err
	}
	return &GetTestResultXMLOutput{Report: report}, nil
}

// ListTestsInput represents the input parameters for listing clinical tests.
// Empty filters are not sent.
type ListTestsInput struct {
	// AccessToken authorizes the request.
	AccessToken string
	// State filters tests by state.
	State TestState
	// StartDate is the inclusive lower bound of the received date, in YYYY-MM-DD format.
	StartDate string
	// EndDate is the inclusive upper bound of the received date, in YYYY-MM-DD format.
	EndDate string
	// Sort orders the results by received date.
	Sort SortOrder
}

// ListTestsOutput represents the result of a test listing.
type ListTestsOutput struct {
	// Tests are the matching tests in the order returned by QCI.
	Tests []TestSummary
}

// ListTests lists the clinical tests matching the given filters.
func (c *ClientImpl) ListTests(ctx context.Context, params *ListTestsInput) (*ListTestsOutput, error) {
	if params == nil {
		params = &ListTestsInput{}
	}
	if err := checkAccessToken(params.AccessToken); err != nil {
		return &ListTestsOutput{}, err
	}
	query, err := params.query()
	if err != nil {
		return &ListTestsOutput{}, err
	}
	resp, err := c.send(ctx, http.MethodGet, "/v1/clinical", query, params.AccessToken, nil, "")
	if err != nil {
		return &ListTestsOutput{}, err
	}
	var tests []TestSummary
	if err := resp.decodeJSON(&tests); err != nil {
		return &ListTestsOutput{}, err
	}
	if tests == nil {
		tests = []TestSummary{}
	}
	return &ListTestsOutput{Tests: tests}, nil
}

func (params *ListTestsInput) query() (url.Values, error) {
	if !params.State.valid() {
		return nil, ValidationError{Msg: fmt.Sprintf("unknown state %q", params.State)}
	}
	if !params.Sort.valid() {
		return nil, ValidationError{Msg: fmt.Sprintf("unknown sort order %q", params.Sort)}
	}
	query := url.Values{}
	// state is always part of the listing request, even when empty.
	query.Set("state", string(params.State))
	for _, d := range []struct {
		key   string
		value string
	}{
		{"startReceivedDate", params.StartDate},
		{"endReceivedDate", params.EndDate},
	} {
		if d.value == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, d.value); err != nil {
			return nil, ValidationError{Msg: fmt.Sprintf("%s must be in YYYY-MM-DD format", d.key)}
		}
		query.Set(d.key, d.value)
	}
	if params.Sort != "" {
		query.Set("sort", string(params.Sort))
	}
	return query, nil
}

// ShareTestInput represents the input parameters for sharing a test.
type ShareTestInput struct {
	// AccessToken authorizes the request.
	AccessToken string
	// ID is either the data package ID or the accession ID of the sample.
	ID string
	// Users are the QCI users the test is shared with.
	Users []User
}

// ShareTestOutput represents the result of sharing a test.
type ShareTestOutput struct {
	// Body is the raw response body.
	Body []byte
}

// ShareTest shares a test with the given users.
func (c *ClientImpl) ShareTest(ctx context.Context, params *ShareTestInput) (*ShareTestOutput, error) {
	if params == nil {
		params = &ShareTestInput{}
	}
	if err := checkIdentified(params.AccessToken, params.ID); err != nil {
		return &ShareTestOutput{}, err
	}
	if len(params.Users) == 0 {
		return &ShareTestOutput{}, ValidationError{ID: params.ID, Msg: "no users to share with"}
	}
	for _, u := range params.Users {
		if strings.TrimSpace(u.Email) == "" {
			return &ShareTestOutput{}, ValidationError{ID: params.ID, Msg: "user email is required"}
		}
	}
	payload, err := json.Marshal(params.Users)
	if err != nil {
		return &ShareTestOutput{}, ValidationError{ID: params.ID, Msg: err.Error()}
	}
	resp, err := c.send(ctx, http.MethodPost, "/v1/datapackages/"+params.ID+"/users", nil, params.AccessToken,
		bytes.NewReader(payload), "application/json")
	if err != nil {
		return &ShareTestOutput{}, err
	}
	return &ShareTestOutput{Body: resp.Body}, nil
}

// GetTestProductProfilesInput represents the input parameters for listing test product profiles.
type GetTestProductProfilesInput struct {
	// AccessToken authorizes the request.
	AccessToken string
}

// GetTestProductProfilesOutput represents the available test product profiles.
type GetTestProductProfilesOutput struct {
	Profiles []TestProductProfile
}

// GetTestProductProfiles lists the test product profiles available to the account.
func (c *ClientImpl) GetTestProductProfiles(ctx context.Context, params *GetTestProductProfilesInput) (*GetTestProductProfilesOutput, error) {
	if params == nil {
		params = &GetTestProductProfilesInput{}
	}
	if err := checkAccessToken(params.AccessToken); err != nil {
		return &GetTestProductProfilesOutput{}, err
	}
	resp, err := c.send(ctx, http.MethodGet, "/v1/testProductProfiles", nil, params.AccessToken, nil, "")
	if err != nil {
		return &GetTestProductProfilesOutput{}, err
	}
	var profiles []TestProductProfile
	if err := resp.decodeJSON(&profiles); err != nil {
		return &GetTestProductProfilesOutput{}, err
	}
	if profiles == nil {
		profiles = []TestProductProfile{}
	}
	return &GetTestProductProfilesOutput{Profiles: profiles}, nil
}

type response struct {
	StatusCode int
	Body       []byte
}

func (r *response) decodeJSON(out any) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return MalformedResponseError{Cause: err}
	}
	return nil
}

// send performs one request and reads the whole response body.
// 401 and 403 responses are reported as AuthenticationError; other status codes are left to the caller.
func (c *ClientImpl) send(ctx context.Context, method, path string, query url.Values,
	accessToken string, body io.Reader, contentType string) (*response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	endpoint := c.baseURL.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, TransportError{Cause: err}
	}
	requestID := c.requestID()
	req.Header.Set("X-Request-ID", requestID)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	logger := c.logger.With("request_id", requestID, "method", method, "path", path)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn("request failed", "error", err)
		return nil, TransportError{Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Warn("failed to read response body", "status", resp.StatusCode, "error", err)
		return nil, TransportError{Cause: err}
	}
	logger.Debug("request completed",
		"status", resp.StatusCode,
		"bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		logger.Warn("request was not authorized", "status", resp.StatusCode)
		return nil, AuthenticationError{StatusCode: resp.StatusCode}
	}
	return &response{StatusCode: resp.StatusCode, Body: data}, nil
}

func exportQuery(view, accessToken string) url.Values {
	query := url.Values{}
	query.Set("view", view)
	query.Set("access_token", accessToken)
	return query
}

func checkAccessToken(accessToken string) error {
	if strings.TrimSpace(accessToken) == "" {
		return ValidationError{Msg: "no access token set"}
	}
	return nil
}

func checkIdentified(accessToken, id string) error {
	if id == "" {
		return &IDNotProvidedError{}
	}
	// IDs become a single path segment and the default report filename.
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return ValidationError{ID: id, Msg: "ID must be a single path segment"}
	}
	if strings.TrimSpace(accessToken) == "" {
		return ValidationError{ID: id, Msg: "no access token set"}
	}
	return nil
}
