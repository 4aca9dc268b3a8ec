// Package naming renders proxy clone names from "{token}" templates.
package naming

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/John-Robertt/subforge/internal/model"
	"go.uber.org/zap"
)

const (
	DefaultTemplate      = "{name}-Node-{index}"
	ServerSuffixTemplate = "{name}-{server}"
)

var (
	tokenRe      = regexp.MustCompile(`\{([^{}]+)\}`)
	validTokenRe = regexp.MustCompile(`\{(.*?)\}`)
	identRe      = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z][A-Za-z0-9_]*)*$`)
)

// Processor resolves templates. Unknown tokens are kept verbatim and logged.
type Processor struct {
	Logger *zap.Logger
}

func (p Processor) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.L()
	}
	return p.Logger
}

// Process replaces every resolvable token with its value. It never fails and
// never drops text around an unresolved token.
func (p Processor) Process(tmpl string, ctx Context) string {
	if !strings.Contains(tmpl, "{") {
		return tmpl
	}
	vars := ctx.Vars()
	return tokenRe.ReplaceAllStringFunc(tmpl, func(tok string) string {
		if v, ok := vars.Lookup(tok[1 : len(tok)-1]); ok {
			return v.String()
		}
		p.logger().Warn("unresolved naming variable",
			zap.String("token", tok),
			zap.String("template", tmpl),
			zap.String("proxy", ctx.OriginalName))
		return tok
	})
}

// Process uses the global zap logger.
func Process(tmpl string, ctx Context) string {
	return Processor{}.Process(tmpl, ctx)
}

// Validate checks brace balance and token identifiers. It does not check
// that referenced variables exist.
func Validate(tmpl string) error {
	depth := 0
	for _, r := range tmpl {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
		}
		if depth < 0 {
			break
		}
	}
	if depth != 0 {
		return invalid("命名模板花括号不匹配", tmpl, "")
	}

	for _, m := range validTokenRe.FindAllStringSubmatch(tmpl, -1) {
		if !identRe.MatchString(m[1]) {
			return invalid(fmt.Sprintf("命名模板变量名不合法：%s", m[0]), tmpl, "expected: {name} or {proxy.name}")
		}
	}
	return nil
}

func invalid(msg, tmpl, hint string) error {
	return &TemplateError{
		AppError: model.AppError{
			Code:    "NAMING_TEMPLATE_INVALID",
			Message: msg,
			Stage:   "validate_naming",
			Snippet: tmpl,
			Hint:    hint,
		},
	}
}

// ResolveTemplate picks the effective template: an explicit one, else the
// legacy "{name}-{server}" form when requested, else the default.
func ResolveTemplate(explicit string, legacyServerSuffix bool) string {
	if strings.TrimSpace(explicit) != "" {
		return explicit
	}
	if legacyServerSuffix {
		return ServerSuffixTemplate
	}
	return DefaultTemplate
}
