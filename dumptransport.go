/*
 *    Copyright [2020] Sergey Kudasov
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package loadgen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"
	"time"
)

const (
	RequestHeader      = "========== REQUEST ==========\n%s\n"
	RequestHeaderBody  = "========== REQUEST ==========\n%s\n%s\n"
	ResponseHeaderBody = "========== RESPONSE ==========\n%s\n%s\n"
	ResponseHeader     = "========== RESPONSE ==========\n%s\n"
	HTTPBodyDelimiter  = "\r\n\r\n"
)

// DumpTransport log http request/responses, pprint json bodies
type DumpTransport struct {
	r   http.RoundTripper
	out io.Writer
}

func NewDumpTransport(r http.RoundTripper, out io.Writer) *DumpTransport {
	return &DumpTransport{r: r, out: out}
}

func (d *DumpTransport) RoundTrip(h *http.Request) (*http.Response, error) {
	dump, _ := httputil.DumpRequestOut(h, true)
	if bodyIsJson(h.Header) {
		req, pprintBody := prettyPrintJsonBody(dump)
		fmt.Fprintf(d.out, RequestHeaderBody, req, pprintBody)
	} else {
		fmt.Fprintf(d.out, RequestHeader, dump)
	}
	resp, err := d.r.RoundTrip(h)
	if err != nil {
		return nil, err
	}
	dump, _ = httputil.DumpResponse(resp, true)
	if bodyIsJson(resp.Header) {
		respString, pprintBody := prettyPrintJsonBody(dump)
		fmt.Fprintf(d.out, ResponseHeaderBody, respString, pprintBody)
		return resp, nil
	}
	fmt.Fprintf(d.out, ResponseHeader, dump)
	return resp, nil
}

// prettyPrintJsonBody returns http format head and indented json body, body is kept as is if it is not json
func prettyPrintJsonBody(b []byte) (string, string) {
	sp := strings.SplitN(string(b), HTTPBodyDelimiter, 2)
	if len(sp) != 2 {
		return sp[0], ""
	}
	var out bytes.Buffer
	if err := json.Indent(&out, []byte(sp[1]), "", "    "); err != nil {
		return sp[0], sp[1]
	}
	return sp[0], out.String()
}

// NewLoggingHTTPClient creates client with own connection pool, dumps traffic to stdout when debug
func NewLoggingHTTPClient(debug bool, timeout time.Duration) *http.Client {
	var transport http.RoundTripper = http.DefaultTransport.(*http.Transport).Clone()
	if debug {
		transport = NewDumpTransport(transport, os.Stdout)
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

func bodyIsJson(h http.Header) bool {
	return strings.Contains(h.Get("content-type"), "application/json")
}
