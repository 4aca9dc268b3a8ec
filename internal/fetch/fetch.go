// Package fetch downloads remote text (subscriptions, templates) over
// http/https with a timeout, a redirect cap, a size cap and a UTF-8 check.
// Every failure is a *FetchError carrying the HTTP status the API layer
// should answer with.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/John-Robertt/subforge/internal/model"
)

type Kind int

const (
	KindSubscription Kind = iota
	KindTemplate
)

func (k Kind) stage() string {
	switch k {
	case KindSubscription:
		return "fetch_sub"
	case KindTemplate:
		return "fetch_template"
	default:
		return "fetch"
	}
}

func (k Kind) defaultMaxBytes() int64 {
	if k == KindTemplate {
		return 2 << 20
	}
	return 5 << 20
}

const (
	DefaultTimeout      = 15 * time.Second
	DefaultMaxRedirects = 5
)

type Options struct {
	Timeout      time.Duration // default 15s
	MaxBytes     int64         // default per kind
	MaxRedirects int           // default 5

	// Header is copied onto the outgoing request only. Nothing here is ever
	// written into shared client state.
	Header http.Header
}

func (o Options) withDefaults(k Kind) Options {
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxRedirects == 0 {
		o.MaxRedirects = DefaultMaxRedirects
	}
	if o.MaxBytes == 0 {
		o.MaxBytes = k.defaultMaxBytes()
	}
	return o
}

type FetchError struct {
	Status   int
	AppError model.AppError
	Cause    error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

var (
	errTooManyRedirects   = errors.New("too many redirects")
	errRedirectBadScheme  = errors.New("redirect target scheme is not http/https")
	errInvalidURLOrScheme = errors.New("invalid url or scheme")
)

// request describes one fetch so error construction stays in one place.
type request struct {
	stage string
	url   string
}

func (r request) fail(status int, code, msg string, cause error) error {
	return &FetchError{
		Status: status,
		AppError: model.AppError{
			Code:    code,
			Message: msg,
			Stage:   r.stage,
			URL:     r.url,
		},
		Cause: cause,
	}
}

func (r request) invalid(msg string, cause error) error {
	return r.fail(http.StatusBadRequest, "INVALID_ARGUMENT", msg, cause)
}

func (r request) timeout(cause error) error {
	return r.fail(http.StatusGatewayTimeout, "FETCH_TIMEOUT", "拉取远程资源超时", cause)
}

func FetchText(ctx context.Context, kind Kind, rawURL string) (string, error) {
	return FetchTextWithOptions(ctx, kind, rawURL, Options{})
}

func FetchTextWithOptions(ctx context.Context, kind Kind, rawURL string, opt Options) (string, error) {
	rq := request{stage: kind.stage(), url: rawURL}
	opt = opt.withDefaults(kind)
	if opt.MaxBytes <= 0 {
		return "", rq.invalid("响应大小上限必须大于 0", nil)
	}

	u, err := url.Parse(rawURL)
	if err != nil || u == nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", rq.invalid("仅允许 http/https URL", errors.Join(errInvalidURLOrScheme, err))
	}

	client := &http.Client{
		Timeout:   opt.Timeout,
		Transport: http.DefaultTransport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// len(via) is the number of redirects already followed.
			if len(via) > opt.MaxRedirects {
				return errTooManyRedirects
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return errRedirectBadScheme
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", rq.invalid("请求 URL 不合法", err)
	}
	for k, vs := range opt.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return "", rq.classifyDoError(err, opt.MaxRedirects)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", rq.fail(http.StatusBadGateway, "FETCH_FAILED",
			fmt.Sprintf("上游返回非 2xx 状态码：%d", resp.StatusCode), nil)
	}

	// Read at most MaxBytes+1 to detect overflow deterministically.
	body, err := io.ReadAll(io.LimitReader(resp.Body, opt.MaxBytes+1))
	if err != nil {
		if isTimeout(err) {
			return "", rq.timeout(err)
		}
		return "", rq.fail(http.StatusBadGateway, "FETCH_FAILED", "读取上游响应失败", err)
	}
	if int64(len(body)) > opt.MaxBytes {
		return "", rq.fail(http.StatusUnprocessableEntity, "TOO_LARGE",
			fmt.Sprintf("远程资源过大（>%d bytes）", opt.MaxBytes), nil)
	}
	if !utf8.Valid(body) {
		return "", rq.fail(http.StatusUnprocessableEntity, "FETCH_INVALID_UTF8", "远程资源不是合法 UTF-8 文本", nil)
	}
	return string(body), nil
}

func (r request) classifyDoError(err error, maxRedirects int) error {
	switch {
	case errors.Is(err, errTooManyRedirects):
		return r.fail(http.StatusBadGateway, "FETCH_FAILED",
			fmt.Sprintf("重定向次数超过上限（>%d）", maxRedirects), err)
	case errors.Is(err, errRedirectBadScheme):
		return r.invalid("重定向目标仅允许 http/https", err)
	case isTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return r.timeout(err)
	default:
		return r.fail(http.StatusBadGateway, "FETCH_FAILED", "拉取远程资源失败", err)
	}
}

// isTimeout sees through *url.Error and friends.
func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
