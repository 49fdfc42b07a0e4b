package site

import "errors"

// Code is the numeric outcome reported to API clients.
type Code int

// Outcome codes. Only CodeFailure and CodeInvalid mean failure.
const (
	CodeInvalid  Code = 0
	CodeCacheHit Code = 100
	CodeSuccess  Code = 200
	CodeFailure  Code = 10001
)

// Message returns the short client-facing message for a code.
func (c Code) Message() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeCacheHit:
		return "cache hit"
	default:
		return "fail"
	}
}

var (
	// ErrNotFound signals that the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate signals that a submission for the URL already exists.
	ErrDuplicate = errors.New("url already submitted")
	// ErrEmptyPage signals that the crawl produced no usable content.
	ErrEmptyPage = errors.New("crawl returned no content")
	// ErrInvalidURL signals a missing or malformed URL.
	ErrInvalidURL = errors.New("url is required")
)

// Result is the outcome of one enrichment. Failures carry the reason in Err
// and never carry a record.
type Result struct {
	Code   Code
	Record *SiteRecord
	Err    error
}

// OK reports whether the result carries a record.
func (r Result) OK() bool {
	return r.Code == CodeSuccess || r.Code == CodeCacheHit
}

// Reason renders the failure reason, or an empty string on success.
func (r Result) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Success wraps a stored record.
func Success(rec SiteRecord) Result {
	return Result{Code: CodeSuccess, Record: &rec}
}

// CacheHit wraps a record served from the store.
func CacheHit(rec SiteRecord) Result {
	return Result{Code: CodeCacheHit, Record: &rec}
}

// Failure wraps a downstream failure.
func Failure(err error) Result {
	return Result{Code: CodeFailure, Err: err}
}

// Envelope is the {code, msg, data} body shared by API responses and webhook
// deliveries.
type Envelope struct {
	Code Code        `json:"code"`
	Msg  string      `json:"msg"`
	Data *SiteRecord `json:"data,omitempty"`
}

// EnvelopeOf renders r for clients. Failures carry the reason in Msg.
func EnvelopeOf(r Result) Envelope {
	env := Envelope{Code: r.Code, Msg: r.Code.Message(), Data: r.Record}
	if !r.OK() && r.Err != nil {
		env.Msg = env.Msg + ": " + r.Err.Error()
	}
	return env
}
