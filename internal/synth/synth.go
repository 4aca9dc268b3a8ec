// Package synth sequences the subscription pipeline:
// parse -> fetch remote -> parse remote -> merge -> cleanup -> extend -> serialize.
//
// The engine holds no per-call state; concurrent calls are independent.
package synth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/John-Robertt/subforge/internal/doc"
	"github.com/John-Robertt/subforge/internal/extend"
	"github.com/John-Robertt/subforge/internal/fetch"
	"github.com/John-Robertt/subforge/internal/merge"
	"github.com/John-Robertt/subforge/internal/model"
	"go.uber.org/zap"
)

// RemoteFetcher returns the subscription body, or "" on any failure.
// header is scoped to the single outgoing request.
type RemoteFetcher interface {
	Fetch(ctx context.Context, url string, header http.Header) string
}

type Request struct {
	TemplateText string
	// TemplateSource names the template in errors (default "template").
	TemplateSource string

	SubscriptionURL string
	Header          http.Header

	DefaultIPs     []model.IPRecord
	DedicatedIPs   []model.IPRecord
	NamingTemplate string
	// CustomProperties feeds the {custom.<key>} naming variables.
	CustomProperties map[string]any
}

type Result struct {
	Text  string
	Stats extend.Stats
}

// GenerationError is the single fatal error surfaced to callers. The cause
// (a *doc.ParseError or *doc.SerializeError) stays reachable via errors.As.
type GenerationError struct {
	AppError model.AppError
	Cause    error
}

func (e *GenerationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }

type Engine struct {
	// Fetcher may be nil, in which case the remote document is always empty.
	Fetcher RemoteFetcher
	Logger  *zap.Logger

	RewriteGroupMembers bool
}

func (e *Engine) logger() *zap.Logger {
	if e == nil || e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// Synthesize returns the serialized configuration or a *GenerationError.
func (e *Engine) Synthesize(ctx context.Context, req Request) (string, error) {
	res, err := e.Run(ctx, req)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	log := e.logger()

	source := req.TemplateSource
	if source == "" {
		source = "template"
	}
	target, err := doc.Parse(source, req.TemplateText)
	if err != nil {
		return nil, e.fail("模板解析失败", err)
	}

	remoteURL := strings.TrimSpace(req.SubscriptionURL)
	remoteText := ""
	if remoteURL != "" && e.Fetcher != nil {
		remoteText = e.Fetcher.Fetch(ctx, remoteURL, req.Header)
	}

	remote, err := doc.Parse(remoteURL, remoteText)
	if err != nil {
		log.Warn("remote subscription is not a structured document; ignoring it",
			zap.Error(err))
		remote = doc.NewMapping()
	}

	merge.Merge(target, remote)
	merge.CleanupEmptyProxyGroups(target)

	st := extend.Extend(target, req.DefaultIPs, req.DedicatedIPs, req.NamingTemplate, extend.Options{
		Logger:              log,
		RewriteGroupMembers: e.RewriteGroupMembers,
		CustomProperties:    req.CustomProperties,
	})

	out, err := doc.Serialize(target)
	if err != nil {
		return nil, e.fail("配置序列化失败", err)
	}

	log.Debug("synthesized configuration",
		zap.Int("candidates", st.Candidates),
		zap.Int("clones", st.Clones),
		zap.Int("passthrough", st.Passthrough),
		zap.Int("skipped", st.Skipped),
		zap.Int("bytes", len(out)))
	return &Result{Text: out, Stats: st}, nil
}

func (e *Engine) fail(msg string, cause error) error {
	e.logger().Error("configuration generation failed", zap.Error(cause))
	return &GenerationError{
		AppError: model.AppError{
			Code:    "GENERATION_FAILED",
			Message: msg,
			Stage:   "synthesize",
		},
		Cause: cause,
	}
}

var defaultEngine = &Engine{
	Fetcher:             &fetch.SoftFetcher{},
	RewriteGroupMembers: true,
}

// Synthesize runs the pipeline with a default engine (soft-failing HTTP
// fetcher with default limits, global zap logger).
func Synthesize(templateText, remoteURL string, defaultIPs, dedicatedIPs []model.IPRecord, namingTemplate string) (string, error) {
	e := *defaultEngine
	e.Logger = zap.L()
	return e.Synthesize(context.Background(), Request{
		TemplateText:    templateText,
		SubscriptionURL: remoteURL,
		DefaultIPs:      defaultIPs,
		DedicatedIPs:    dedicatedIPs,
		NamingTemplate:  namingTemplate,
	})
}
