package load

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"

	loadgen "github.com/skudasov/bidload"
)

const (
	LegitimateResponseCheck = "is legitimate response (200 or 204)"

	logUnexpectedStatusParam = "log_unexpected_status"
)

var seedSalt int64

// IsLegitimateResponse 200 is a bid, 204 is a filtered request, both are fine
func IsLegitimateResponse(status int) bool {
	return status == http.StatusOK || status == http.StatusNoContent
}

type BidRequestAttack struct {
	loadgen.WithRunner
	client        *http.Client
	url           string
	gen           *Generator
	logUnexpected bool
}

func (a *BidRequestAttack) Setup(hc loadgen.RunnerConfig) error {
	a.client = loadgen.NewLoggingHTTPClient(hc.DumpTransport, hc.HTTPTimeout())
	var host string
	if m := a.GetManager(); m != nil && m.GeneratorConfig != nil {
		host = m.GeneratorConfig.Generator.TargetHost
	}
	a.url = TargetURL(host, TargetPort())
	a.gen = NewGenerator(rand.NewSource(time.Now().UnixNano() + atomic.AddInt64(&seedSalt, 1)))
	a.logUnexpected = hc.HandleParam(logUnexpectedStatusParam, "false") == "true"
	return nil
}

func (a *BidRequestAttack) Do(ctx context.Context) loadgen.DoResult {
	payload, err := a.gen.Next().Marshal()
	if err != nil {
		return a.failed(err, 0)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return a.failed(err, int64(len(payload)))
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return a.failed(err, int64(len(payload)))
	}
	n, _ := io.Copy(ioutil.Discard, resp.Body)
	resp.Body.Close()
	ok := IsLegitimateResponse(resp.StatusCode)
	if !ok && a.logUnexpected && a.R != nil {
		a.R.L.FromCtx(ctx).Debugf("Got status: %d", resp.StatusCode)
	}
	return loadgen.DoResult{
		RequestLabel: BidRequestLabel,
		StatusCode:   resp.StatusCode,
		BytesIn:      int64(len(payload)),
		BytesOut:     n,
		Checks:       []loadgen.Check{{Name: LegitimateResponseCheck, Passed: ok}},
	}
}

// failed no response, the check fails the same way as a bad status
func (a *BidRequestAttack) failed(err error, sent int64) loadgen.DoResult {
	return loadgen.DoResult{
		RequestLabel: BidRequestLabel,
		Error:        err,
		BytesIn:      sent,
		Checks:       []loadgen.Check{{Name: LegitimateResponseCheck, Passed: false}},
	}
}

func (a *BidRequestAttack) CheckNames() []string {
	return []string{LegitimateResponseCheck}
}

func (a *BidRequestAttack) Teardown() error {
	if a.client != nil {
		a.client.CloseIdleConnections()
	}
	return nil
}

func (a *BidRequestAttack) Clone(r *loadgen.Runner) loadgen.Attack {
	return &BidRequestAttack{WithRunner: loadgen.WithRunner{R: r}}
}
