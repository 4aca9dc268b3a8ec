package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/John-Robertt/subforge/internal/auth"
	"github.com/John-Robertt/subforge/internal/doc"
	"github.com/John-Robertt/subforge/internal/ipcsv"
	"github.com/John-Robertt/subforge/internal/model"
	"github.com/John-Robertt/subforge/internal/naming"
	"github.com/John-Robertt/subforge/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	sessionCookie = "subforge_session"
	maxBodyBytes  = 4 << 20
)

func (s *server) adminEnabled(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.opt.Admin.enabled() {
			s.writeErrorFromErr(w, notFound("NOT_FOUND", "接口不存在"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if c, err := r.Cookie(sessionCookie); err == nil {
			token = c.Value
		}
		if h := r.Header.Get("Authorization"); token == "" && strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}

		_, err := s.opt.Admin.Signer.Verify(token)
		if err != nil {
			msg := "未登录或会话无效"
			if errors.Is(err, auth.ErrExpiredSession) {
				msg = "会话已过期，请重新登录"
			}
			s.writeErrorFromErr(w, apiError(http.StatusUnauthorized, model.AppError{
				Code:    "UNAUTHORIZED",
				Message: msg,
				Stage:   "auth",
			}, err))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	if err := dec.Decode(&req); err != nil {
		s.writeErrorFromErr(w, requestError("INVALID_ARGUMENT", "请求体必须是 JSON：{username,password}", ""))
		return
	}
	a := s.opt.Admin
	if !auth.CheckPassword(a.Username, a.Password, req.Username, req.Password) {
		s.log.Warn("admin login failed", zap.String("username", req.Username))
		s.writeErrorFromErr(w, apiError(http.StatusUnauthorized, model.AppError{
			Code:    "LOGIN_FAILED",
			Message: "用户名或密码错误",
			Stage:   "auth",
		}, nil))
		return
	}

	token, exp := a.Signer.Issue(req.Username)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/admin",
		Expires:  exp,
		HttpOnly: true,
		Secure:   a.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	WriteJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: exp.UTC()})
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/admin",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opt.Admin.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func readBody(w http.ResponseWriter, r *http.Request) (string, error) {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return "", apiError(http.StatusRequestEntityTooLarge, model.AppError{
				Code:    "BODY_TOO_LARGE",
				Message: "请求体过大",
				Stage:   "validate_request",
			}, err)
		}
		return "", requestError("INVALID_ARGUMENT", "读取请求体失败", "")
	}
	return string(b), nil
}

func (s *server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	text, ok, err := s.opt.Store.Load(store.KeyTemplate)
	if err != nil {
		s.writeErrorFromErr(w, storageError(err))
		return
	}
	if !ok {
		s.writeErrorFromErr(w, notFound("TEMPLATE_NOT_CONFIGURED", "尚未配置模板"))
		return
	}
	WriteYAML(w, http.StatusOK, text)
}

func (s *server) handlePutTemplate(w http.ResponseWriter, r *http.Request) {
	text, err := readBody(w, r)
	if err != nil {
		s.writeErrorFromErr(w, err)
		return
	}
	if _, err := doc.Parse(store.KeyTemplate, text); err != nil {
		s.writeErrorFromErr(w, err)
		return
	}
	if err := s.opt.Store.Save(store.KeyTemplate, text); err != nil {
		s.writeErrorFromErr(w, storageError(err))
		return
	}
	s.log.Info("template updated", zap.Int("bytes", len(text)))
	w.WriteHeader(http.StatusNoContent)
}

// ipKey returns the store key addressed by the request: the user list when
// the route carries {id}, else the default list.
func ipKey(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if id == "" {
		return store.KeyDefaultIPs, nil
	}
	if err := store.ValidateUserID(id); err != nil {
		return "", err
	}
	return store.KeyUserIPs(id), nil
}

type ipUploadResponse struct {
	Accepted int               `json:"accepted"`
	Rejected []ipcsv.LineError `json:"rejected"`
}

func (s *server) handleGetIPs(w http.ResponseWriter, r *http.Request) {
	key, err := ipKey(r)
	if err != nil {
		s.writeErrorFromErr(w, err)
		return
	}
	text, _, err := s.opt.Store.Load(key)
	if err != nil {
		s.writeErrorFromErr(w, storageError(err))
		return
	}
	writeBody(w, http.StatusOK, "text/csv; charset=utf-8", text)
}

func (s *server) handlePutIPs(w http.ResponseWriter, r *http.Request) {
	key, err := ipKey(r)
	if err != nil {
		s.writeErrorFromErr(w, err)
		return
	}
	text, err := readBody(w, r)
	if err != nil {
		s.writeErrorFromErr(w, err)
		return
	}

	res := ipcsv.Parse(text)
	if err := s.opt.Store.Save(key, ipcsv.Format(res.Records)); err != nil {
		s.writeErrorFromErr(w, storageError(err))
		return
	}
	s.log.Info("ip list updated",
		zap.String("key", key),
		zap.Int("accepted", len(res.Records)),
		zap.Int("rejected", len(res.Rejected)))

	rejected := res.Rejected
	if rejected == nil {
		rejected = []ipcsv.LineError{}
	}
	WriteJSON(w, http.StatusOK, ipUploadResponse{Accepted: len(res.Records), Rejected: rejected})
}

func (s *server) handleDeleteIPs(w http.ResponseWriter, r *http.Request) {
	key, err := ipKey(r)
	if err != nil {
		s.writeErrorFromErr(w, err)
		return
	}
	if err := s.opt.Store.Delete(key); err != nil {
		s.writeErrorFromErr(w, storageError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleGetUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List()
	if err != nil {
		s.writeErrorFromErr(w, err)
		return
	}
	text, err := store.FormatUsers(users)
	if err != nil {
		s.writeErrorFromErr(w, err)
		return
	}
	WriteYAML(w, http.StatusOK, text)
}

// handlePutUsers replaces the registry and answers with the stored list,
// which carries the tokens assigned to new users.
func (s *server) handlePutUsers(w http.ResponseWriter, r *http.Request) {
	text, err := readBody(w, r)
	if err != nil {
		s.writeErrorFromErr(w, err)
		return
	}
	users, err := store.ParseUsers(text)
	if err != nil {
		s.writeErrorFromErr(w, err)
		return
	}
	saved, err := s.users.Save(users)
	if err != nil {
		var re *store.RegistryError
		if !errors.As(err, &re) {
			err = storageError(err)
		}
		s.writeErrorFromErr(w, err)
		return
	}
	out, err := store.FormatUsers(saved)
	if err != nil {
		s.writeErrorFromErr(w, err)
		return
	}
	s.log.Info("user registry updated", zap.Int("users", len(saved)))
	WriteYAML(w, http.StatusOK, out)
}

type namingValidateRequest struct {
	Template string `json:"template"`
}

type namingValidateResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
	// Preview renders the template against a sample proxy when valid.
	Preview string `json:"preview,omitempty"`
}

func (s *server) handleValidateNaming(w http.ResponseWriter, r *http.Request) {
	var req namingValidateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		s.writeErrorFromErr(w, requestError("INVALID_ARGUMENT", "请求体必须是 JSON：{template}", ""))
		return
	}
	if err := naming.Validate(req.Template); err != nil {
		msg := err.Error()
		var te *naming.TemplateError
		if errors.As(err, &te) {
			msg = te.AppError.Message
		}
		WriteJSON(w, http.StatusOK, namingValidateResponse{Valid: false, Error: msg})
		return
	}
	WriteJSON(w, http.StatusOK, namingValidateResponse{
		Valid:   true,
		Preview: naming.Processor{Logger: s.log}.Process(req.Template, previewContext),
	})
}

var previewContext = naming.Context{
	OriginalName: "HK-01",
	Index:        1,
	Server:       "203.0.113.10",
	ServerName:   "hk.example.com",
	Port:         443,
	Network:      "ws",
	Type:         "vless",
	UUID:         "00000000-0000-0000-0000-000000000000",
}
