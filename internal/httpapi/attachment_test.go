package httpapi

import (
	"testing"

	"github.com/John-Robertt/subforge/internal/model"
)

func TestOutputFileName(t *testing.T) {
	cases := []struct {
		user model.User
		want string
	}{
		{model.User{ID: "alice"}, "alice.yaml"},
		{model.User{ID: "alice", Name: "Home"}, "Home.yaml"},
		{model.User{ID: "alice", Name: "home.yml"}, "home.yml"},
		{model.User{ID: "alice", Name: "a/b"}, "alice.yaml"},
		{model.User{ID: "alice", Name: "x\r\ny"}, "alice.yaml"},
		{model.User{}, "config.yaml"},
	}
	for _, tc := range cases {
		if got := outputFileName(tc.user); got != tc.want {
			t.Fatalf("outputFileName(%+v)=%q, want=%q", tc.user, got, tc.want)
		}
	}
}

func TestContentDispositionAttachment(t *testing.T) {
	got := contentDispositionAttachment(`我的 "配置".yaml`)
	want := `attachment; filename="我的 \"配置\".yaml"; filename*=UTF-8''%E6%88%91%E7%9A%84%20%22%E9%85%8D%E7%BD%AE%22.yaml`
	if got != want {
		t.Fatalf("got=%q\nwant=%q", got, want)
	}
}
