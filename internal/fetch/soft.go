package fetch

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

// SoftFetcher never fails: any error (bad URL, timeout, non-2xx, oversize
// body) yields "" after being logged and reported to OnError.
type SoftFetcher struct {
	Options Options
	Logger  *zap.Logger

	// OnError, when set, observes every swallowed error (e.g. for metrics).
	OnError func(err error)
}

func (f *SoftFetcher) Fetch(ctx context.Context, rawURL string, header http.Header) string {
	opt := f.Options
	opt.Header = mergeHeader(f.Options.Header, header)

	text, err := FetchTextWithOptions(ctx, KindSubscription, rawURL, opt)
	if err != nil {
		if f.Logger != nil {
			f.Logger.Warn("remote subscription fetch failed; using empty document",
				zap.String("url", RedactURL(rawURL)),
				zap.Error(err))
		}
		if f.OnError != nil {
			f.OnError(err)
		}
		return ""
	}
	return text
}

// mergeHeader returns a fresh header: base values overridden per key by
// override values.
func mergeHeader(base, override http.Header) http.Header {
	out := make(http.Header, len(base)+len(override))
	for k, vs := range base {
		out[k] = append([]string(nil), vs...)
	}
	for k, vs := range override {
		out[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
	return out
}

// RedactURL strips credentials, query and fragment so subscription tokens
// never reach the logs.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u == nil {
		return "(invalid url)"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
