package synth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/John-Robertt/subforge/internal/doc"
	"github.com/John-Robertt/subforge/internal/fetch"
	"github.com/John-Robertt/subforge/internal/model"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubFetcher struct {
	mu     sync.Mutex
	body   map[string]string
	header []http.Header
}

func (f *stubFetcher) Fetch(_ context.Context, url string, header http.Header) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.header = append(f.header, header)
	return f.body[url]
}

type proxyRow struct {
	Name   string
	Server string
	Port   int
}

func outputRows(t *testing.T, out string) []proxyRow {
	t.Helper()
	root, err := doc.Parse("output", out)
	if err != nil {
		t.Fatalf("output is not a valid document: %v\n%s", err, out)
	}
	var rows []proxyRow
	for _, p := range doc.Get(root, "proxies").Content {
		rows = append(rows, proxyRow{doc.ScalarString(p, "name"), doc.ScalarString(p, "server"), doc.ScalarInt(p, "port")})
	}
	return rows
}

const templateHK = `
proxies:
  - {name: HK, type: vless, server: 1.2.3.4, port: 443}
`

func TestSynthesize_ScenarioA(t *testing.T) {
	e := &Engine{}
	out, err := e.Synthesize(context.Background(), Request{
		TemplateText:   templateHK,
		NamingTemplate: "{name}-Node-{index}",
		DedicatedIPs: []model.IPRecord{
			{Address: "1.1.1.1", Port: 443},
			{Address: "2.2.2.2", Port: 8443},
		},
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	want := []proxyRow{{"HK-Node-1", "1.1.1.1", 443}, {"HK-Node-2", "2.2.2.2", 8443}}
	if diff := cmp.Diff(want, outputRows(t, out)); diff != "" {
		t.Fatalf("proxies mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(out, "type: vless") {
		t.Fatalf("type not preserved:\n%s", out)
	}
}

func TestSynthesize_ScenarioB(t *testing.T) {
	e := &Engine{}
	out, err := e.Synthesize(context.Background(), Request{
		TemplateText:   strings.Replace(templateHK, "1.2.3.4", "example.com", 1),
		NamingTemplate: "{name}-Node-{index}",
		DedicatedIPs:   []model.IPRecord{{Address: "1.1.1.1", Port: 443}, {Address: "2.2.2.2", Port: 8443}},
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if diff := cmp.Diff([]proxyRow{{"HK", "example.com", 443}}, outputRows(t, out)); diff != "" {
		t.Fatalf("proxies mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesize_ScenarioC(t *testing.T) {
	remote := "proxy-groups:\n  - {name: G1, type: select, proxies: [R1]}\nproxies:\n  - {name: R1, type: ss, server: r.example.com, port: 8388}\n"
	f := &stubFetcher{body: map[string]string{"https://sub.example.com/a": remote}}
	e := &Engine{Fetcher: f}

	out, err := e.Synthesize(context.Background(), Request{
		TemplateText:    "mode: rule\n",
		SubscriptionURL: "https://sub.example.com/a",
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	root, _ := doc.Parse("out", out)
	groups := doc.Get(root, "proxy-groups")
	if groups == nil || len(groups.Content) != 1 || doc.ScalarString(groups.Content[0], "name") != "G1" {
		t.Fatalf("remote groups not adopted:\n%s", out)
	}

	out, err = e.Synthesize(context.Background(), Request{
		TemplateText:    "proxy-groups:\n  - {name: Local, type: select, proxies: [DIRECT]}\n",
		SubscriptionURL: "https://sub.example.com/a",
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if strings.Contains(out, "G1") || !strings.Contains(out, "Local") {
		t.Fatalf("template groups should win:\n%s", out)
	}
}

func TestSynthesize_EmptyGroupsRemoved(t *testing.T) {
	out, err := (&Engine{}).Synthesize(context.Background(), Request{TemplateText: "proxy-groups: []\nmode: rule\n"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if out != "mode: rule\n" {
		t.Fatalf("out=%q", out)
	}
}

func TestSynthesize_TemplateParseFailureIsFatal(t *testing.T) {
	_, err := (&Engine{}).Synthesize(context.Background(), Request{TemplateText: "- not\n- a mapping\n"})
	var ge *GenerationError
	if !errors.As(err, &ge) {
		t.Fatalf("expected *GenerationError, got %T: %v", err, err)
	}
	if ge.AppError.Code != "GENERATION_FAILED" {
		t.Fatalf("code=%q", ge.AppError.Code)
	}
	var pe *doc.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("cause should be *doc.ParseError, got %v", ge.Cause)
	}
}

func TestSynthesize_RemoteFailuresDegrade(t *testing.T) {
	f := &stubFetcher{body: map[string]string{
		"https://sub.example.com/links": "dmxlc3M6Ly9hYmM=",
		"https://sub.example.com/bad":   "proxies: [\n",
	}}
	e := &Engine{Fetcher: f}
	for _, u := range []string{"https://sub.example.com/links", "https://sub.example.com/bad", "https://sub.example.com/missing"} {
		out, err := e.Synthesize(context.Background(), Request{TemplateText: templateHK, SubscriptionURL: u})
		if err != nil {
			t.Fatalf("%s: unexpected err: %v", u, err)
		}
		if diff := cmp.Diff([]proxyRow{{"HK", "1.2.3.4", 443}}, outputRows(t, out)); diff != "" {
			t.Fatalf("%s: (-want +got):\n%s", u, diff)
		}
	}
}

func TestSynthesize_HeaderForwarded(t *testing.T) {
	f := &stubFetcher{body: map[string]string{}}
	e := &Engine{Fetcher: f}
	h := http.Header{"User-Agent": {"clash.meta"}}
	if _, err := e.Synthesize(context.Background(), Request{TemplateText: "a: 1\n", SubscriptionURL: "https://x", Header: h}); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(f.header) != 1 || f.header[0].Get("User-Agent") != "clash.meta" {
		t.Fatalf("headers=%v", f.header)
	}

	// No URL: no fetch at all.
	if _, err := e.Synthesize(context.Background(), Request{TemplateText: "a: 1\n"}); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(f.header) != 1 {
		t.Fatalf("fetch called without URL")
	}
}

func TestSynthesize_EndToEndWithHTTPFetcher(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "clash-verge" {
			http.Error(w, "ua", http.StatusForbidden)
			return
		}
		_, _ = fmt.Fprint(w, "proxies:\n  - {name: R, type: trojan, server: 5.6.7.8, port: 443}\nrules:\n  - MATCH,R\n")
	}))
	defer ts.Close()
	t.Cleanup(http.DefaultClient.CloseIdleConnections)

	e := &Engine{Fetcher: &fetch.SoftFetcher{}, RewriteGroupMembers: true}
	res, err := e.Run(context.Background(), Request{
		TemplateText:    templateHK + "proxy-groups:\n  - {name: PROXY, type: select, proxies: [HK, R]}\n",
		SubscriptionURL: ts.URL,
		Header:          http.Header{"User-Agent": {"clash-verge"}},
		DefaultIPs:      []model.IPRecord{{Address: "9.9.9.9", Port: 2053}},
		NamingTemplate:  "{name}@{server}",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []proxyRow{{"HK@9.9.9.9", "9.9.9.9", 2053}, {"R@9.9.9.9", "9.9.9.9", 2053}}
	if diff := cmp.Diff(want, outputRows(t, res.Text)); diff != "" {
		t.Fatalf("proxies mismatch (-want +got):\n%s", diff)
	}
	if res.Stats.Clones != 2 {
		t.Fatalf("stats=%+v", res.Stats)
	}
	if !strings.Contains(res.Text, "- MATCH,R") {
		t.Fatalf("remote-only key not copied:\n%s", res.Text)
	}
	if !strings.Contains(res.Text, "proxies: [HK@9.9.9.9, R@9.9.9.9]") {
		t.Fatalf("group members not rewritten:\n%s", res.Text)
	}
}

func TestSynthesize_AnchoredProxyOutputReparses(t *testing.T) {
	e := &Engine{RewriteGroupMembers: true}
	out, err := e.Synthesize(context.Background(), Request{
		TemplateText: `
proxies:
  - {name: &hk HK, type: vless, server: 1.2.3.4, port: 443}
proxy-groups:
  - {name: G, type: select, proxies: [*hk]}
`,
		DedicatedIPs:   []model.IPRecord{{Address: "1.1.1.1", Port: 443}, {Address: "2.2.2.2", Port: 443}},
		NamingTemplate: "{name}-{index}",
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	want := []proxyRow{{"HK-1", "1.1.1.1", 443}, {"HK-2", "2.2.2.2", 443}}
	if diff := cmp.Diff(want, outputRows(t, out)); diff != "" {
		t.Fatalf("proxies mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(out, "proxies: [HK-1, HK-2]") {
		t.Fatalf("group members not rewritten:\n%s", out)
	}
}

func TestSynthesize_CustomProperties(t *testing.T) {
	e := &Engine{}
	out, err := e.Synthesize(context.Background(), Request{
		TemplateText:     templateHK,
		DedicatedIPs:     []model.IPRecord{{Address: "1.1.1.1", Port: 443}},
		NamingTemplate:   "{name}-{custom.region}",
		CustomProperties: map[string]any{"region": "APAC"},
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if diff := cmp.Diff([]proxyRow{{"HK-APAC", "1.1.1.1", 443}}, outputRows(t, out)); diff != "" {
		t.Fatalf("proxies mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesize_ConcurrentCallsIndependent(t *testing.T) {
	e := &Engine{}
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr := fmt.Sprintf("10.0.0.%d", i+1)
			out, err := e.Synthesize(context.Background(), Request{
				TemplateText: templateHK,
				DedicatedIPs: []model.IPRecord{{Address: addr, Port: 443}},
			})
			if err != nil {
				errs <- err
				return
			}
			root, err := doc.Parse("output", out)
			if err != nil {
				errs <- err
				return
			}
			ps := doc.Get(root, "proxies").Content
			if len(ps) != 1 || doc.ScalarString(ps[0], "server") != addr {
				errs <- fmt.Errorf("call %d got foreign output:\n%s", i, out)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}
