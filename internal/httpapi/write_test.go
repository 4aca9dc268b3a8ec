package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/John-Robertt/subforge/internal/model"
)

func TestWriteError_JSONShapeAndHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, http.StatusUnprocessableEntity, model.AppError{
		Code:    "DOCUMENT_PARSE_ERROR",
		Message: "模板解析失败",
		Stage:   "parse_document",
		URL:     "template.yaml",
		Line:    123,
		Snippet: "proxies: [",
		Hint:    "check brackets",
	})

	if got, want := rr.Code, http.StatusUnprocessableEntity; got != want {
		t.Fatalf("status = %d, want %d", got, want)
	}

	if got, want := rr.Header().Get("Content-Type"), "application/json; charset=utf-8"; got != want {
		t.Fatalf("Content-Type = %q, want %q", got, want)
	}

	var resp model.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nbody=%q", err, rr.Body.String())
	}
	if resp.Error.Code != "DOCUMENT_PARSE_ERROR" {
		t.Fatalf("code = %q, want %q", resp.Error.Code, "DOCUMENT_PARSE_ERROR")
	}
	if resp.Error.Stage != "parse_document" {
		t.Fatalf("stage = %q, want %q", resp.Error.Stage, "parse_document")
	}
	if resp.Error.Line != 123 {
		t.Fatalf("line = %d, want %d", resp.Error.Line, 123)
	}
}
