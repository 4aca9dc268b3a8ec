// Package doc wraps the yaml.v3 node tree used for templates, remote
// subscriptions and generated output.
//
// A Document is always a single root mapping node. Trees are built per call
// and never shared between calls.
package doc

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/John-Robertt/subforge/internal/model"
	"gopkg.in/yaml.v3"
)

const (
	tagStr  = "!!str"
	tagInt  = "!!int"
	tagNull = "!!null"
	tagMap  = "!!map"
	tagSeq  = "!!seq"
)

var yamlLineRe = regexp.MustCompile(`line (\d+)`)

// maxDocumentNodes bounds a parsed tree after alias expansion.
const maxDocumentNodes = 1 << 20

// Parse decodes text into a root mapping node.
//
// Empty (or comment-only / null) input yields an empty mapping. Any other
// non-mapping root, a syntax error, or a multi-document stream returns
// *ParseError. Aliases are expanded, so the returned tree carries no anchors.
// source is only used for error reporting.
func Parse(source string, text string) (*yaml.Node, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	if strings.TrimSpace(text) == "" {
		return NewMapping(), nil
	}

	dec := yaml.NewDecoder(strings.NewReader(text))
	var d yaml.Node
	if err := dec.Decode(&d); err != nil {
		if errors.Is(err, io.EOF) {
			return NewMapping(), nil
		}
		return nil, parseError(source, text, "YAML 解析失败", err)
	}

	// Reject multi-document YAML to keep behavior deterministic.
	var extra yaml.Node
	if err := dec.Decode(&extra); err == nil {
		return nil, parseError(source, text, "不允许多个 YAML 文档", errors.New("multiple YAML documents are not allowed"))
	} else if !errors.Is(err, io.EOF) {
		return nil, parseError(source, text, "YAML 解析失败", err)
	}

	if d.Kind != yaml.DocumentNode || len(d.Content) == 0 {
		return NewMapping(), nil
	}
	root := d.Content[0]
	switch {
	case root.Kind == yaml.MappingNode:
		expanded, err := CloneBounded(root, maxDocumentNodes)
		if err != nil {
			return nil, parseError(source, text, "文档展开后节点过多", err)
		}
		return expanded, nil
	case IsNull(root):
		return NewMapping(), nil
	default:
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    "DOCUMENT_PARSE_ERROR",
				Message: "文档根节点必须是映射（mapping）",
				Stage:   "parse_document",
				URL:     source,
				Line:    root.Line,
				Snippet: truncateSnippet(text, 200),
			},
		}
	}
}

func parseError(source, text, msg string, cause error) error {
	line := 0
	if m := yamlLineRe.FindStringSubmatch(cause.Error()); m != nil {
		line, _ = strconv.Atoi(m[1])
	}
	return &ParseError{
		AppError: model.AppError{
			Code:    "DOCUMENT_PARSE_ERROR",
			Message: msg,
			Stage:   "parse_document",
			URL:     source,
			Line:    line,
			Snippet: truncateSnippet(text, 200),
		},
		Cause: cause,
	}
}

// Serialize renders root (a mapping or a document node) with 2-space indent.
func Serialize(root *yaml.Node) (string, error) {
	if root == nil {
		return "", &SerializeError{
			AppError: model.AppError{
				Code:    "SERIALIZE_ERROR",
				Message: "输出文档为空",
				Stage:   "serialize",
			},
		}
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return "", &SerializeError{
			AppError: model.AppError{
				Code:    "SERIALIZE_ERROR",
				Message: "输出文档序列化失败",
				Stage:   "serialize",
			},
			Cause: err,
		}
	}
	if err := enc.Close(); err != nil {
		return "", &SerializeError{
			AppError: model.AppError{
				Code:    "SERIALIZE_ERROR",
				Message: "输出文档序列化失败",
				Stage:   "serialize",
			},
			Cause: err,
		}
	}
	return buf.String(), nil
}

func truncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max]
}
