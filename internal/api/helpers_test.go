package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Resinat/Prism/internal/service"
)

func TestDecodeBody_RejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1,"b":2}`))
	var v struct {
		A int `json:"a"`
	}
	if err := DecodeBody(req, &v); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestDecodeBody_RejectsMultipleValues(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1} {"a":2}`))
	var v struct {
		A int `json:"a"`
	}
	err := DecodeBody(req, &v)
	if err == nil || !strings.Contains(err.Error(), "single JSON value") {
		t.Fatalf("err: got %v", err)
	}
}

func TestDecodeBody_TooLarge(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":123456789}`))
	req.Body = http.MaxBytesReader(rec, req.Body, 4)
	var v struct {
		A int `json:"a"`
	}
	err := DecodeBody(req, &v)
	var tooLarge *requestBodyTooLargeError
	if !errors.As(err, &tooLarge) || tooLarge.Limit != 4 {
		t.Fatalf("err: got %v", err)
	}
}

func TestParseBoolQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?a=true&b=0&c=nah", nil)

	if v, err := ParseBoolQuery(req, "a"); err != nil || v == nil || !*v {
		t.Fatalf("a: got %v, %v", v, err)
	}
	if v, err := ParseBoolQuery(req, "b"); err != nil || v == nil || *v {
		t.Fatalf("b: got %v, %v", v, err)
	}
	if _, err := ParseBoolQuery(req, "c"); err == nil {
		t.Fatal("c: expected error")
	}
	if v, err := ParseBoolQuery(req, "missing"); err != nil || v != nil {
		t.Fatalf("missing: got %v, %v", v, err)
	}
}

func TestParseNumericQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?w=640&dpr=1.5&bad=x", nil)

	if n, err := ParseIntQuery(req, "w"); err != nil || n != 640 {
		t.Fatalf("w: got %d, %v", n, err)
	}
	if n, err := ParseIntQuery(req, "h"); err != nil || n != 0 {
		t.Fatalf("h: got %d, %v", n, err)
	}
	if _, err := ParseIntQuery(req, "bad"); err == nil {
		t.Fatal("bad int: expected error")
	}
	if f, err := ParseFloatQuery(req, "dpr"); err != nil || f != 1.5 {
		t.Fatalf("dpr: got %v, %v", f, err)
	}
	if _, err := ParseFloatQuery(req, "bad"); err == nil {
		t.Fatal("bad float: expected error")
	}
}

func TestValidateUUID(t *testing.T) {
	if !ValidateUUID("3f2504e0-4f89-41d3-9a0c-0305e82c3301") {
		t.Fatal("canonical lowercase uuid rejected")
	}
	for _, s := range []string{"", "not-a-uuid", "3F2504E0-4F89-41D3-9A0C-0305E82C3301", "{3f2504e0-4f89-41d3-9a0c-0305e82c3301}"} {
		if ValidateUUID(s) {
			t.Fatalf("ValidateUUID(%q) = true", s)
		}
	}
}

func TestWriteServiceError_StatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&service.ServiceError{Code: "INVALID_ARGUMENT", Message: "bad"}, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{&service.ServiceError{Code: "NOT_FOUND", Message: "gone"}, http.StatusNotFound, "NOT_FOUND"},
		{&service.ServiceError{Code: "BACKEND_DOWN", Message: "x"}, http.StatusInternalServerError, "BACKEND_DOWN"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
		{nil, http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeServiceError(rec, tc.err)
		if rec.Code != tc.status {
			t.Fatalf("%v: status %d, want %d", tc.err, rec.Code, tc.status)
		}
		assertErrorCode(t, rec, tc.code)
	}
	rec := httptest.NewRecorder()
	writeServiceError(rec, errors.New("secret detail"))
	if strings.Contains(rec.Body.String(), "secret detail") {
		t.Fatal("internal error message leaked")
	}
}
