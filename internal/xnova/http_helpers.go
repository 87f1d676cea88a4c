package xnova

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// newFormRequest は form-urlencoded で POST するためのリクエストを作る。
func newFormRequest(ctx context.Context, rawURL string, fields map[string]string) (*http.Request, error) {
	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	return req, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	if resp.Body == nil {
		return nil, nil
	}
	return io.ReadAll(resp.Body)
}

func debugSummary(resp *http.Response) string {
	if resp == nil {
		return "nil response"
	}
	return fmt.Sprintf("status=%d location=%s", resp.StatusCode, resp.Header.Get("Location"))
}

func summarizeCookies(cookies []*http.Cookie) string {
	if len(cookies) == 0 {
		return "(none)"
	}
	parts := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		parts = append(parts, fmt.Sprintf("%s(len=%d)", ck.Name, len(ck.Value)))
	}
	return strings.Join(parts, " ")
}

// Set-Cookie の値は出さず名前だけ
func summarizeSetCookies(values []string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		name := v
		if idx := strings.IndexByte(v, '='); idx > 0 {
			name = v[:idx]
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, " ")
}
