package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/John-Robertt/subforge/internal/model"
	"github.com/John-Robertt/subforge/internal/naming"
	"github.com/John-Robertt/subforge/internal/store"
	"github.com/John-Robertt/subforge/internal/synth"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteText(w, http.StatusOK, "ok\n")
}

func (s *server) handleSub(w http.ResponseWriter, r *http.Request) {
	user, ok, err := s.users.ByToken(chi.URLParam(r, "token"))
	if err != nil {
		s.writeErrorFromErr(w, err)
		return
	}
	if !ok || user.Disabled {
		s.writeErrorFromErr(w, notFound("SUBSCRIPTION_NOT_FOUND", "订阅不存在或已停用"))
		return
	}

	// Keep a hard upper bound so handlers don't hang forever if upstream misbehaves.
	ctx, cancel := context.WithTimeout(r.Context(), s.opt.SynthesisTimeout)
	defer cancel()

	var (
		templateText string
		hasTemplate  bool
		defaultIPs   []model.IPRecord
		dedicatedIPs []model.IPRecord
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		templateText, hasTemplate, err = s.opt.Store.Load(store.KeyTemplate)
		return err
	})
	g.Go(func() error {
		var err error
		defaultIPs, err = s.ips.LoadDefaultIPs()
		return err
	})
	g.Go(func() error {
		var err error
		dedicatedIPs, err = s.ips.LoadDedicatedIPs(user.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.writeErrorFromErr(w, storageError(err))
		return
	}
	if !hasTemplate {
		s.writeErrorFromErr(w, apiError(http.StatusServiceUnavailable, model.AppError{
			Code:    "TEMPLATE_NOT_CONFIGURED",
			Message: "尚未配置模板",
			Stage:   "load_template",
			Hint:    "PUT /admin/template",
		}, nil))
		return
	}

	header := make(http.Header)
	ua := r.Header.Get("User-Agent")
	if ua == "" {
		ua = s.opt.DefaultUserAgent
	}
	if ua != "" {
		header.Set("User-Agent", ua)
	}

	explicit := user.NamingTemplate
	if strings.TrimSpace(explicit) == "" {
		explicit = s.opt.NamingTemplate
	}

	start := time.Now()
	res, err := s.opt.Engine.Run(ctx, synth.Request{
		TemplateText:    templateText,
		TemplateSource:  store.KeyTemplate,
		SubscriptionURL: user.SubscriptionURL,
		Header:          header,
		DefaultIPs:      defaultIPs,
		DedicatedIPs:    dedicatedIPs,
		NamingTemplate:  naming.ResolveTemplate(explicit, s.opt.LegacyServerSuffix),

		CustomProperties: s.opt.CustomProperties,
	})
	if err != nil {
		s.writeErrorFromErr(w, err)
		return
	}
	s.metrics.ObserveSynthesis(time.Since(start), res.Stats.Passthrough+res.Stats.Clones)
	s.log.Debug("subscription served",
		zap.String("user", user.ID),
		zap.Int("default_ips", len(defaultIPs)),
		zap.Int("dedicated_ips", len(dedicatedIPs)),
		zap.Int("clones", res.Stats.Clones))

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Disposition", contentDispositionAttachment(outputFileName(user)))
	WriteYAML(w, http.StatusOK, res.Text)
}
