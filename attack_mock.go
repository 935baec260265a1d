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
	"sync/atomic"
	"time"
)

const mockCheck = "is mock ok"

// attackMock sleeps and answers with a fixed status, checks pass on 200
type attackMock struct {
	WithRunner
	sleep    time.Duration
	status   int
	panics   bool
	setupErr error
	calls    *int64
}

func newAttackMock(sleep time.Duration, status int) *attackMock {
	return &attackMock{sleep: sleep, status: status, calls: new(int64)}
}

func (m *attackMock) Setup(c RunnerConfig) error {
	return m.setupErr
}

func (m *attackMock) Do(ctx context.Context) DoResult {
	atomic.AddInt64(m.calls, 1)
	if m.panics {
		panic("mock exploded")
	}
	select {
	case <-time.After(m.sleep):
	case <-ctx.Done():
		return DoResult{RequestLabel: "mock", Error: ctx.Err(), Checks: failedChecks(m.CheckNames())}
	}
	var err error
	if m.status == 0 {
		err = errors.New("connection refused")
	}
	return DoResult{
		RequestLabel: "mock",
		StatusCode:   m.status,
		Error:        err,
		Checks:       []Check{{Name: mockCheck, Passed: m.status == 200}},
	}
}

func (m *attackMock) CheckNames() []string {
	return []string{mockCheck}
}

func (m *attackMock) Clone(r *Runner) Attack {
	c := *m
	c.WithRunner = WithRunner{R: r}
	return &c
}
