package httpapi

import (
	"net/http"

	"github.com/John-Robertt/subforge/internal/model"
	"github.com/John-Robertt/subforge/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type server struct {
	opt     Options
	log     *zap.Logger
	metrics *Metrics
	users   *store.UserRegistry
	ips     *store.IPSource
}

func newServer(opt Options) *server {
	opt = opt.withDefaults()
	return &server{
		opt:     opt,
		log:     opt.Logger,
		metrics: opt.Metrics,
		users:   &store.UserRegistry{Store: opt.Store},
		ips:     &store.IPSource{Store: opt.Store, Logger: opt.Logger},
	}
}

// NewHandler returns the production handler: routes plus access log and
// request metrics.
func NewHandler(opt Options) http.Handler {
	return NewRouter(opt)
}

func NewRouter(opt Options) chi.Router {
	s := newServer(opt)

	r := chi.NewRouter()
	r.Use(s.withObservability)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeErrorFromErr(w, notFound("NOT_FOUND", "接口不存在"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeErrorFromErr(w, apiError(http.StatusMethodNotAllowed, model.AppError{
			Code:    "METHOD_NOT_ALLOWED",
			Message: "请求方法不支持",
			Stage:   "validate_request",
			Hint:    r.Method,
		}, nil))
	})

	r.Get("/healthz", handleHealthz)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Get("/sub/{token}", s.handleSub)

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.adminEnabled)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)

			r.Get("/template", s.handleGetTemplate)
			r.Put("/template", s.handlePutTemplate)

			r.Get("/ips/default", s.handleGetIPs)
			r.Put("/ips/default", s.handlePutIPs)
			r.Get("/ips/users/{id}", s.handleGetIPs)
			r.Put("/ips/users/{id}", s.handlePutIPs)
			r.Delete("/ips/users/{id}", s.handleDeleteIPs)

			r.Get("/users", s.handleGetUsers)
			r.Put("/users", s.handlePutUsers)

			r.Post("/naming/validate", s.handleValidateNaming)
		})
	})
	return r
}
