package httpapi

import (
	"time"

	"github.com/John-Robertt/subforge/internal/auth"
	"github.com/John-Robertt/subforge/internal/fetch"
	"github.com/John-Robertt/subforge/internal/store"
	"github.com/John-Robertt/subforge/internal/synth"
	"go.uber.org/zap"
)

// Options wires the HTTP API to its collaborators.
type Options struct {
	// Store holds the template, IP lists and user registry. Required.
	Store store.TextStore

	// Engine defaults to one fetching remote subscriptions with a
	// fetch.SoftFetcher.
	Engine  *synth.Engine
	Logger  *zap.Logger
	Metrics *Metrics

	// SynthesisTimeout is the hard upper bound for one /sub request
	// (storage reads + remote fetch + synthesis).
	SynthesisTimeout time.Duration

	// DefaultUserAgent is forwarded upstream when the client sent none.
	DefaultUserAgent string

	// NamingTemplate applies to users without their own template.
	NamingTemplate     string
	LegacyServerSuffix bool
	// CustomProperties are shared by every user's naming template.
	CustomProperties map[string]any

	Admin AdminOptions
}

type AdminOptions struct {
	Username string
	// Password empty disables every /admin route.
	Password string
	Signer   *auth.Signer
	// SecureCookie marks the session cookie Secure (HTTPS deployments).
	SecureCookie bool
}

func (a AdminOptions) enabled() bool { return a.Password != "" && a.Signer != nil }

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Metrics == nil {
		o.Metrics = NewMetrics()
	}
	if o.Engine == nil {
		o.Engine = &synth.Engine{
			Fetcher: &fetch.SoftFetcher{
				Logger:  o.Logger,
				OnError: o.Metrics.ObserveFetchError,
			},
			Logger:              o.Logger,
			RewriteGroupMembers: true,
		}
	}
	if o.SynthesisTimeout <= 0 {
		o.SynthesisTimeout = 60 * time.Second
	}
	if o.Store == nil {
		o.Store = store.NewMemStore()
	}
	return o
}
