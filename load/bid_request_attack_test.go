package load

import (
	"context"
	"io/ioutil"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	loadgen "github.com/skudasov/bidload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAttack(t *testing.T, target string) *BidRequestAttack {
	t.Helper()
	a := new(BidRequestAttack)
	require.NoError(t, a.Setup(loadgen.RunnerConfig{HTTPTimeoutSec: 5}))
	a.url = target + BidRequestPath
	a.gen = NewGenerator(rand.NewSource(3))
	return a
}

func TestIsLegitimateResponse(t *testing.T) {
	assert.True(t, IsLegitimateResponse(http.StatusOK))
	assert.True(t, IsLegitimateResponse(http.StatusNoContent))
	for _, s := range []int{0, 201, 301, 400, 404, 500, 503} {
		assert.False(t, IsLegitimateResponse(s), s)
	}
}

func TestBidRequestAttackStatuses(t *testing.T) {
	tests := []struct {
		status int
		passed bool
	}{
		{http.StatusOK, true},
		{http.StatusNoContent, true},
		{http.StatusBadRequest, false},
		{http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()
			a := newTestAttack(t, srv.URL)
			res := a.Do(context.Background())
			require.NoError(t, res.Error)
			assert.Equal(t, tt.status, res.StatusCode)
			assert.Equal(t, BidRequestLabel, res.RequestLabel)
			require.Len(t, res.Checks, 1)
			assert.Equal(t, LegitimateResponseCheck, res.Checks[0].Name)
			assert.Equal(t, tt.passed, res.Checks[0].Passed)
		})
	}
}

func TestBidRequestAttackSendsJSONPost(t *testing.T) {
	var (
		method, path, contentType string
		body                      []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path, contentType = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		body, _ = ioutil.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	a := newTestAttack(t, srv.URL)
	res := a.Do(context.Background())
	require.NoError(t, res.Error)
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, BidRequestPath, path)
	assert.Equal(t, "application/json", contentType)
	br, err := ParseBidRequest(body)
	require.NoError(t, err)
	assert.Contains(t, Domains, br.Site.Domain)
	assert.Equal(t, int64(len(body)), res.BytesIn)
}

func TestBidRequestAttackConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close()
	a := newTestAttack(t, target)
	var res loadgen.DoResult
	require.NotPanics(t, func() { res = a.Do(context.Background()) })
	require.Error(t, res.Error)
	assert.Equal(t, 0, res.StatusCode)
	require.Len(t, res.Checks, 1)
	assert.False(t, res.Checks[0].Passed)
}

func TestBidRequestAttackDefaultTarget(t *testing.T) {
	t.Setenv(TargetPortEnv, "")
	a := new(BidRequestAttack)
	require.NoError(t, a.Setup(loadgen.RunnerConfig{}))
	assert.Equal(t, "http://localhost:8070/bid-request", a.url)
}

func TestBidRequestRunnerAgainstReceiver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		br, err := ParseBidRequest(mustRead(r))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if br.Device.LMT == 1 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	t.Setenv(TargetPortEnv, u.Port())

	cfg := loadgen.RunnerConfig{
		HandleName:     BidRequestLabel,
		VUs:            3,
		DurationSec:    1,
		DoTimeoutSec:   1,
		HTTPTimeoutSec: 1,
	}
	r, err := loadgen.NewRunner(BidRequestLabel, nil, loadgen.WithMonitor(new(BidRequestAttack)), nil, cfg)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	report, err := r.Run(ctx)
	require.NoError(t, err)
	require.Contains(t, report.Checks, LegitimateResponseCheck)
	stats := report.Checks[LegitimateResponseCheck]
	assert.Greater(t, stats.Passes, uint64(0))
	assert.Equal(t, uint64(0), stats.Fails)
	assert.False(t, report.Failed)
	require.Contains(t, report.Metrics, BidRequestLabel)
	assert.Equal(t, stats.Total(), report.Metrics[BidRequestLabel].Requests)
}

func mustRead(r *http.Request) []byte {
	b, _ := ioutil.ReadAll(r.Body)
	return b
}

func TestBidRequestAttackLogsUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	cfg := loadgen.RunnerConfig{
		VUs:          1,
		DurationSec:  1,
		DoTimeoutSec: 1,
		HandleParams: map[string]string{logUnexpectedStatusParam: "true"},
	}
	r, err := loadgen.NewRunner(BidRequestLabel, nil, new(BidRequestAttack), nil, cfg)
	require.NoError(t, err)
	a := new(BidRequestAttack).Clone(r).(*BidRequestAttack)
	require.NoError(t, a.Setup(cfg))
	assert.True(t, a.logUnexpected)
	a.url = srv.URL + BidRequestPath
	res := a.Do(loadgen.WithVUId(context.Background(), 1))
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.False(t, res.Checks[0].Passed)
	require.NoError(t, a.Teardown())
}
