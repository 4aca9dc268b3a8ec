package store

import (
	"errors"
	"testing"

	"github.com/John-Robertt/subforge/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRegistry_SaveAssignsTokens(t *testing.T) {
	r := &UserRegistry{Store: NewMemStore()}
	saved, err := r.Save([]model.User{
		{ID: "alice", SubscriptionURL: "https://sub.example.com/a"},
		{ID: "bob", Token: "fixed-token", NamingTemplate: "{name}-{index}"},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	_, err = uuid.Parse(saved[0].Token)
	assert.NoError(t, err, "generated token should be a uuid")
	assert.Equal(t, "fixed-token", saved[1].Token)

	u, ok, err := r.ByToken("fixed-token")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bob", u.ID)

	u, ok, err = r.Get("alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, saved[0].Token, u.Token)

	_, ok, err = r.ByToken("")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserRegistry_Add(t *testing.T) {
	r := &UserRegistry{Store: NewMemStore()}
	a, err := r.Add(model.User{ID: "a"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.Token)

	_, err = r.Add(model.User{ID: "a"})
	var re *RegistryError
	require.True(t, errors.As(err, &re), "err=%v", err)

	users, err := r.List()
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestValidateUsers(t *testing.T) {
	bad := map[string][]model.User{
		"bad id":         {{ID: "a/b"}},
		"dup id":         {{ID: "a"}, {ID: "a"}},
		"dup token":      {{ID: "a", Token: "t"}, {ID: "b", Token: "t"}},
		"bad naming":     {{ID: "a", NamingTemplate: "{name"}},
		"bad sub scheme": {{ID: "a", SubscriptionURL: "file:///etc/passwd"}},
	}
	for name, users := range bad {
		err := ValidateUsers(users)
		var re *RegistryError
		assert.True(t, errors.As(err, &re), "%s: err=%v", name, err)
	}
	assert.NoError(t, ValidateUsers([]model.User{{ID: "ok_1-2", SubscriptionURL: "http://x.example.com/s"}}))
}

func TestParseUsers_Strict(t *testing.T) {
	_, err := ParseUsers("users:\n  - id: a\n    unknown_field: 1\n")
	assert.Error(t, err)

	users, err := ParseUsers("")
	require.NoError(t, err)
	assert.Empty(t, users)

	text, err := FormatUsers([]model.User{{ID: "a", Token: "t", Disabled: true}})
	require.NoError(t, err)
	back, err := ParseUsers(text)
	require.NoError(t, err)
	assert.Equal(t, []model.User{{ID: "a", Token: "t", Disabled: true}}, back)
}
