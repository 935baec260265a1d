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
	e "errors"
	"fmt"
	"time"
)

// Attack must be implemented by a service client.
type Attack interface {
	Runnable
	// Setup should establish the connection to the service
	// It may want to access the Config of the Runner.
	Setup(c RunnerConfig) error
	// Do performs one request and is executed in a separate goroutine.
	// The context is used to cancel the request on timeout.
	Do(ctx context.Context) DoResult
	// Teardown can be used to close the connection to the service
	Teardown() error
	// Clone should return a fresh new Attack, one per virtual user
	// Make sure the new Attack has values for shared struct fields initialized at Setup.
	Clone(r *Runner) Attack
}

// Runnable gives an attack access to its runner and manager
type Runnable interface {
	// GetManager get test manager, nil when the runner is used standalone
	GetManager() *LoadManager
	// GetRunner get current runner
	GetRunner() *Runner
}

// WithRunner embeds Runner with all configs to be accessible for attacker
type WithRunner struct {
	R *Runner
}

func (a *WithRunner) Teardown() error { return nil }

func (a *WithRunner) GetManager() *LoadManager {
	if a.R == nil {
		return nil
	}
	return a.R.Manager
}

func (a *WithRunner) GetRunner() *Runner {
	return a.R
}

var errAttackDoTimedOut = e.New("Attack Do(ctx) timedout")

// attack is one virtual user: it calls attacker.Do until ctx is done
// and sends a result on the results channel after each call.
// Calls run under doCtx, so a call in flight when ctx ends still completes and is counted,
// only a cancelled doCtx (shutdown) drops it.
func attack(ctx context.Context, doCtx context.Context, attacker Attack, results chan<- result, timeout time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		r := doWithTimeout(doCtx, attacker, timeout)
		if doCtx.Err() != nil {
			// interrupted by shutdown, not counted
			return
		}
		results <- r
	}
}

// doWithTimeout performs exactly one Do, either the attacker or the timeout decides the result
func doWithTimeout(parent context.Context, attacker Attack, timeout time.Duration) result {
	begin := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	// buffered so a late Do does not leak its goroutine
	done := make(chan DoResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- DoResult{Error: fmt.Errorf("attack Do panicked: %v", rec), Checks: declaredFailures(attacker)}
			}
		}()
		done <- attacker.Do(ctx)
	}()
	var dor DoResult
	select {
	case <-ctx.Done():
		dor = timedOut(parent, ctx, attacker)
	case dor = <-done:
		// Do gave up on its own deadline
		if e.Is(dor.Error, context.DeadlineExceeded) && ctx.Err() != nil {
			dor = timedOut(parent, ctx, attacker)
		}
	}
	end := time.Now()
	return result{
		doResult: dor,
		begin:    begin,
		end:      end,
		elapsed:  end.Sub(begin),
	}
}

// timedOut result of a call whose context is done, declared checks fail
func timedOut(parent, ctx context.Context, attacker Attack) DoResult {
	err := ctx.Err()
	if parent.Err() == nil {
		err = errAttackDoTimedOut
	}
	return DoResult{Error: err, Checks: declaredFailures(attacker)}
}

func declaredFailures(attacker Attack) []Check {
	if d, ok := attacker.(CheckDeclarer); ok {
		return failedChecks(d.CheckNames())
	}
	return nil
}
