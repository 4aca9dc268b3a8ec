package httpapi

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/John-Robertt/subforge/internal/model"
)

// outputFileName is the download name of a user's configuration: the
// display name when it is usable, else the user id, with a .yaml extension.
func outputFileName(u model.User) string {
	base := strings.TrimSpace(u.Name)
	if base == "" || strings.ContainsAny(base, "\r\n\x00/\\") || len(base) > 200 {
		base = u.ID
	}
	if base == "" {
		base = "config"
	}
	if !hasExt(base) {
		base += ".yaml"
	}
	return base
}

func hasExt(name string) bool {
	i := strings.LastIndexByte(name, '.')
	return i > 0 && i < len(name)-1
}

func contentDispositionAttachment(filename string) string {
	// RFC 6266 + RFC 5987.
	escaped := strings.ReplaceAll(filename, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
	return fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", escaped, pctEncode(filename))
}

func pctEncode(s string) string {
	// QueryEscape uses '+' for spaces; rewrite to %20.
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
