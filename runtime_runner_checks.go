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
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

const prometheusCheckType = "prometheus"

// RuntimeCheckFunc returns true when the runner must be stopped
type RuntimeCheckFunc func(r *Runner) bool

var errNotBoolQuery = errors.New("only bool queries are allowed in prometheus stop checks")

// NewPromAPI creates prometheus query client
func NewPromAPI(url string) (v1.API, error) {
	c, err := api.NewClient(api.Config{Address: url})
	if err != nil {
		return nil, fmt.Errorf("failed to setup prometheus client: %w", err)
	}
	return v1.NewAPI(c), nil
}

// PromBooleanQuery executes prometheus boolean query, true means the condition is met
func PromBooleanQuery(ctx context.Context, client v1.API, q string) (bool, error) {
	if !strings.Contains(q, "bool") {
		return false, errNotBoolQuery
	}
	val, _, err := client.Query(ctx, q, time.Now())
	if err != nil {
		return false, fmt.Errorf("error executing prometheus query %s: %w", q, err)
	}
	switch v := val.(type) {
	case *model.Scalar:
		return v.Value == 1, nil
	case model.Vector:
		if len(v) > 1 {
			return false, fmt.Errorf("ambiguous check, query must return one vector or scalar, got %d", len(v))
		}
		if len(v) == 1 && v[0].Value == 1 {
			return true, nil
		}
		return false, nil
	default:
		return false, fmt.Errorf("unsupported prometheus value type: %s", val.Type())
	}
}

// promStopCheck wraps a stop_if query into a RuntimeCheckFunc, query errors never stop the run
func promStopCheck(client v1.API, q string) RuntimeCheckFunc {
	return func(r *Runner) bool {
		r.L.Infof("executing prometheus check: query: %s", q)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		stop, err := PromBooleanQuery(ctx, client, q)
		if err != nil {
			r.L.Errorf("prometheus check failed: %s", err)
			return false
		}
		return stop
	}
}
