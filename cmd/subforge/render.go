package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/John-Robertt/subforge/internal/fetch"
	"github.com/John-Robertt/subforge/internal/ipcsv"
	"github.com/John-Robertt/subforge/internal/model"
	"github.com/John-Robertt/subforge/internal/naming"
	"github.com/John-Robertt/subforge/internal/synth"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type renderFlags struct {
	template  string
	remote    string
	ips       string
	dedicated string
	naming    string
	userAgent string
	out       string
}

func newRenderCmd(a *app) *cobra.Command {
	var f renderFlags
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Synthesize one configuration offline and print it",
		Long: `Render runs the same pipeline as GET /sub/{token} without the server:
template (file or http(s) URL) + optional remote subscription + IP pools.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.render(cmd.Context(), f)
			if err != nil {
				return err
			}
			if f.out == "" || f.out == "-" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), out)
				return err
			}
			return os.WriteFile(f.out, []byte(out), 0o644)
		},
	}
	cmd.Flags().StringVar(&f.template, "template", "", "template file path or http(s) URL")
	cmd.Flags().StringVar(&f.remote, "remote", "", "remote subscription URL")
	cmd.Flags().StringVar(&f.ips, "ips", "", "default IP pool CSV file")
	cmd.Flags().StringVar(&f.dedicated, "dedicated", "", "dedicated IP pool CSV file (wins over --ips when non-empty)")
	cmd.Flags().StringVar(&f.naming, "naming", "", "naming template (default from config)")
	cmd.Flags().StringVar(&f.userAgent, "user-agent", "", "User-Agent sent to the remote subscription")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}

func (a *app) render(ctx context.Context, f renderFlags) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Synthesis.Timeout)
	defer cancel()

	templateText, err := a.readTemplate(ctx, f.template)
	if err != nil {
		return "", err
	}
	defaultIPs, err := a.readIPs(f.ips)
	if err != nil {
		return "", err
	}
	dedicatedIPs, err := a.readIPs(f.dedicated)
	if err != nil {
		return "", err
	}

	tmpl := f.naming
	if strings.TrimSpace(tmpl) == "" {
		tmpl = a.cfg.Synthesis.NamingTemplate
	}
	if err := naming.Validate(tmpl); err != nil {
		return "", err
	}

	ua := f.userAgent
	if ua == "" {
		ua = a.cfg.Fetch.UserAgent
	}
	header := make(http.Header)
	if ua != "" {
		header.Set("User-Agent", ua)
	}

	engine := &synth.Engine{
		Fetcher:             &fetch.SoftFetcher{Options: a.fetchOptions(), Logger: a.log},
		Logger:              a.log,
		RewriteGroupMembers: a.cfg.Synthesis.RewriteGroups(),
	}
	return engine.Synthesize(ctx, synth.Request{
		TemplateText:    templateText,
		TemplateSource:  f.template,
		SubscriptionURL: f.remote,
		Header:          header,
		DefaultIPs:      defaultIPs,
		DedicatedIPs:    dedicatedIPs,
		NamingTemplate:  naming.ResolveTemplate(tmpl, a.cfg.Synthesis.LegacyServerSuffix),

		CustomProperties: a.cfg.Synthesis.CustomProperties,
	})
}

func (a *app) readTemplate(ctx context.Context, src string) (string, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return fetch.FetchTextWithOptions(ctx, fetch.KindTemplate, src, a.fetchOptions())
	}
	b, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("read template: %w", err)
	}
	return string(b), nil
}

func (a *app) readIPs(path string) ([]model.IPRecord, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ip list: %w", err)
	}
	res := ipcsv.Parse(string(b))
	for _, le := range res.Rejected {
		a.log.Warn("skip ip record",
			zap.String("file", path),
			zap.Int("line", le.Line),
			zap.String("reason", le.Reason))
	}
	return res.Records, nil
}
