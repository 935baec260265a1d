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

type monitorKind int

const (
	goMetricsMonitor monitorKind = 1 << iota
	csvMonitor
)

// monitoredAttack is implemented by monitor wrappers, the runner records results
// of every counted call into the enabled monitors
type monitoredAttack interface {
	monitors() monitorKind
}

func monitorsOf(a Attack) monitorKind {
	if m, ok := a.(monitoredAttack); ok {
		return m.monitors()
	}
	return 0
}

// Monitored enables go-metrics timers, error and check counters of the runner
type Monitored struct {
	Attack
}

func WithMonitor(a Attack) Monitored {
	return Monitored{a}
}

func (m Monitored) monitors() monitorKind {
	return goMetricsMonitor | monitorsOf(m.Attack)
}

func (m Monitored) CheckNames() []string {
	if d, ok := m.Attack.(CheckDeclarer); ok {
		return d.CheckNames()
	}
	return nil
}

func (m Monitored) Clone(r *Runner) Attack {
	return Monitored{m.Attack.Clone(r)}
}
