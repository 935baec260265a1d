package loadgen

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDumpTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"accepted"}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	c := &http.Client{Transport: NewDumpTransport(http.DefaultTransport, &out)}
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/bid-request", strings.NewReader(`{"id":"req-1"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	dump := out.String()
	for _, want := range []string{"========== REQUEST ==========", "POST /bid-request", "\"id\": \"req-1\"", "========== RESPONSE ==========", "\"status\": \"accepted\""} {
		if !strings.Contains(dump, want) {
			t.Errorf("dump has no %q:\n%s", want, dump)
		}
	}
}

func TestPrettyPrintJsonBody(t *testing.T) {
	head, body := prettyPrintJsonBody([]byte("POST / HTTP/1.1\r\n\r\nnot json"))
	if got, want := head, "POST / HTTP/1.1"; got != want {
		t.Errorf("got %q want %q", got, want)
	}
	if got, want := body, "not json"; got != want {
		t.Errorf("got %q want %q", got, want)
	}
}
