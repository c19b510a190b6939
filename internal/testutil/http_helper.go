package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

// PostForm builds a form-encoded POST request.
func PostForm(t *testing.T, target string, form url.Values) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// ParseHTML parses the recorded response body.
func ParseHTML(t *testing.T, resp *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.Body.String()))
	if err != nil {
		t.Fatalf("Failed to parse HTML response: %v\nBody: %s", err, resp.Body.String())
	}
	return doc
}

// AssertStatusCode checks if the response has the expected status code
func AssertStatusCode(t *testing.T, resp *httptest.ResponseRecorder, expected int) {
	t.Helper()

	if resp.Code != expected {
		t.Errorf("Expected status code %d, got %d\nBody: %s",
			expected, resp.Code, resp.Body.String())
	}
}

// AssertRedirect checks the status is a redirect to location.
func AssertRedirect(t *testing.T, resp *httptest.ResponseRecorder, location string) {
	t.Helper()

	if resp.Code < 300 || resp.Code > 399 {
		t.Errorf("Expected a redirect, got %d\nBody: %s", resp.Code, resp.Body.String())
		return
	}
	if got := resp.Header().Get("Location"); got != location {
		t.Errorf("Expected redirect to %q, got %q", location, got)
	}
}

// FindCookie returns the named cookie set by the response, or nil.
func FindCookie(resp *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range resp.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

// SetCookie adds a cookie to an HTTP request
func SetCookie(req *http.Request, name, value string) {
	req.AddCookie(&http.Cookie{
		Name:  name,
		Value: value,
	})
}
