package store

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/John-Robertt/subforge/internal/model"
	"github.com/John-Robertt/subforge/internal/naming"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

var userIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type RegistryError struct {
	AppError model.AppError
	Cause    error
}

func (e *RegistryError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *RegistryError) Unwrap() error { return e.Cause }

func registryError(msg, snippet string, cause error) error {
	return &RegistryError{
		AppError: model.AppError{
			Code:    "USER_REGISTRY_INVALID",
			Message: msg,
			Stage:   "users",
			Snippet: snippet,
		},
		Cause: cause,
	}
}

// ValidateUserID checks that id is safe to use as a storage key segment.
func ValidateUserID(id string) error {
	if !userIDRe.MatchString(id) {
		return registryError("用户 id 不合法", id, nil)
	}
	return nil
}

type usersFile struct {
	Users []model.User `yaml:"users"`
}

// ParseUsers strictly decodes a users.yaml document.
func ParseUsers(text string) ([]model.User, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	dec := yaml.NewDecoder(strings.NewReader(text))
	dec.KnownFields(true)
	var f usersFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, registryError("users.yaml 解析失败", "", err)
	}
	return f.Users, nil
}

func FormatUsers(users []model.User) (string, error) {
	b, err := yaml.Marshal(usersFile{Users: users})
	if err != nil {
		return "", registryError("users.yaml 序列化失败", "", err)
	}
	return string(b), nil
}

// ValidateUsers checks ids, uniqueness, naming templates and subscription
// URLs. Empty tokens are allowed here; Save fills them in.
func ValidateUsers(users []model.User) error {
	ids := make(map[string]struct{}, len(users))
	tokens := make(map[string]struct{}, len(users))
	for _, u := range users {
		if err := ValidateUserID(u.ID); err != nil {
			return err
		}
		if _, dup := ids[u.ID]; dup {
			return registryError("用户 id 重复", u.ID, nil)
		}
		ids[u.ID] = struct{}{}

		if u.Token != "" {
			if _, dup := tokens[u.Token]; dup {
				return registryError("用户 token 重复", u.ID, nil)
			}
			tokens[u.Token] = struct{}{}
		}
		if err := naming.Validate(u.NamingTemplate); err != nil {
			return registryError("用户命名模板不合法", u.ID, err)
		}
		if s := strings.TrimSpace(u.SubscriptionURL); s != "" {
			p, err := url.Parse(s)
			if err != nil || p == nil || (p.Scheme != "http" && p.Scheme != "https") || p.Host == "" {
				return registryError("订阅地址仅允许 http/https URL", u.ID, err)
			}
		}
	}
	return nil
}

// UserRegistry stores users in the users.yaml blob.
type UserRegistry struct {
	Store TextStore

	// mu serializes read-modify-write cycles (Add).
	mu sync.Mutex
}

func (r *UserRegistry) List() ([]model.User, error) {
	text, ok, err := r.Store.Load(KeyUsers)
	if err != nil || !ok {
		return nil, err
	}
	return ParseUsers(text)
}

func (r *UserRegistry) Get(id string) (model.User, bool, error) {
	users, err := r.List()
	if err != nil {
		return model.User{}, false, err
	}
	for _, u := range users {
		if u.ID == id {
			return u, true, nil
		}
	}
	return model.User{}, false, nil
}

func (r *UserRegistry) ByToken(token string) (model.User, bool, error) {
	if strings.TrimSpace(token) == "" {
		return model.User{}, false, nil
	}
	users, err := r.List()
	if err != nil {
		return model.User{}, false, err
	}
	for _, u := range users {
		if u.Token == token {
			return u, true, nil
		}
	}
	return model.User{}, false, nil
}

// Save validates users, assigns a random token to every user without one and
// replaces the registry. It returns the stored list.
func (r *UserRegistry) Save(users []model.User) ([]model.User, error) {
	out := make([]model.User, len(users))
	copy(out, users)
	for i := range out {
		out[i].ID = strings.TrimSpace(out[i].ID)
		out[i].Token = strings.TrimSpace(out[i].Token)
		if out[i].Token == "" {
			out[i].Token = uuid.NewString()
		}
	}
	if err := ValidateUsers(out); err != nil {
		return nil, err
	}
	text, err := FormatUsers(out)
	if err != nil {
		return nil, err
	}
	if err := r.Store.Save(KeyUsers, text); err != nil {
		return nil, err
	}
	return out, nil
}

// Add appends one user and returns it with its token.
func (r *UserRegistry) Add(u model.User) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.List()
	if err != nil {
		return model.User{}, err
	}
	saved, err := r.Save(append(users, u))
	if err != nil {
		return model.User{}, err
	}
	return saved[len(saved)-1], nil
}
