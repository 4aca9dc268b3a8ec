package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/John-Robertt/subforge/internal/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SUBFORGE_LOG_LEVEL", "error")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestRender_Offline(t *testing.T) {
	tmpl := writeTemp(t, "template.yaml", `proxies:
  - name: HK
    type: ss
    server: 1.2.3.4
    port: 443
  - name: US
    type: ss
    server: us.example.com
    port: 443
proxy-groups:
  - name: Auto
    type: select
    proxies:
      - HK
      - US
`)
	ips := writeTemp(t, "ips.csv", "ip,port,loss,latency\n5.5.5.5,443,0,120\n6.6.6.6,8443,1.5%,80ms\n")

	out, err := execute(t, "render", "--template", tmpl, "--ips", ips, "--naming", "{name}-{index}")
	if err != nil {
		t.Fatalf("render: %v\n%s", err, out)
	}
	for _, want := range []string{"name: HK-1", "server: 5.5.5.5", "name: HK-2", "port: 8443", "name: US", "- HK-1", "- HK-2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "server: 1.2.3.4") {
		t.Fatalf("original IP entry should be replaced:\n%s", out)
	}
}

func TestRender_BadTemplate(t *testing.T) {
	tmpl := writeTemp(t, "template.yaml", "proxies: [\n")
	if _, err := execute(t, "render", "--template", tmpl); err == nil {
		t.Fatal("expected error")
	}
}

func TestNamingValidate(t *testing.T) {
	out, err := execute(t, "naming", "validate", "{name}-{proxy.server}")
	if err != nil || strings.TrimSpace(out) != "ok" {
		t.Fatalf("out=%q err=%v", out, err)
	}
	if _, err := execute(t, "naming", "validate", "{name"); err == nil {
		t.Fatal("expected error for unbalanced braces")
	}
}

func TestUserAdd(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SUBFORGE_STORAGE_DIR", dir)

	out, err := execute(t, "user", "add", "--id", "alice", "--subscription", "https://example.com/s")
	if err != nil {
		t.Fatalf("user add: %v\n%s", err, out)
	}
	if !strings.Contains(out, "path:  /sub/") {
		t.Fatalf("out=%q", out)
	}

	reg := &store.UserRegistry{Store: store.NewFileStore(dir)}
	u, ok, err := reg.Get("alice")
	if err != nil || !ok {
		t.Fatalf("get alice: ok=%v err=%v", ok, err)
	}
	if !strings.Contains(out, u.Token) {
		t.Fatalf("printed token does not match stored token %q:\n%s", u.Token, out)
	}

	if _, err := execute(t, "user", "add", "--id", "alice"); err == nil {
		t.Fatal("expected duplicate id error")
	}
}
