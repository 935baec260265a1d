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
	"fmt"
	"time"

	"github.com/mackerelio/go-osstat/cpu"
	"github.com/mackerelio/go-osstat/memory"
	"github.com/mackerelio/go-osstat/network"
	"github.com/rcrowley/go-metrics"
)

// HostMetrics generator host gauges, a busy generator host skews latencies
type HostMetrics struct {
	hostPrefix       string
	networkInterface string

	cpuUserSystemPercent metrics.Gauge

	memTotal     metrics.Gauge
	memFree      metrics.Gauge
	memUsed      metrics.Gauge
	memCached    metrics.Gauge
	memSwapTotal metrics.Gauge
	memSwapUsed  metrics.Gauge
	memSwapFree  metrics.Gauge

	rx metrics.Gauge
	tx metrics.Gauge
}

// NewHostOSMetrics registers host gauges prefixed by host name
func NewHostOSMetrics(hostPrefix string, networkInterface string) *HostMetrics {
	m := &HostMetrics{
		hostPrefix:       hostPrefix,
		networkInterface: networkInterface,
	}
	m.cpuUserSystemPercent = m.gauge("cpu_used")
	m.memTotal = m.gauge("mem_total")
	m.memFree = m.gauge("mem_free")
	m.memUsed = m.gauge("mem_used")
	m.memCached = m.gauge("mem_cached")
	m.memSwapTotal = m.gauge("mem_swap_total")
	m.memSwapUsed = m.gauge("mem_swap_used")
	m.memSwapFree = m.gauge("mem_swap_free")
	m.rx = m.gauge(fmt.Sprintf("net_%s_rx", networkInterface))
	m.tx = m.gauge(fmt.Sprintf("net_%s_tx", networkInterface))
	return m
}

func (m *HostMetrics) gauge(name string) metrics.Gauge {
	if m.hostPrefix != "" {
		name = m.hostPrefix + "." + name
	}
	return metrics.GetOrRegisterGauge(name, metrics.DefaultRegistry)
}

// GetCPU get user + system cpu used percent over one second
func (m *HostMetrics) GetCPU() (int64, error) {
	before, err := cpu.Get()
	if err != nil {
		return 0, err
	}
	time.Sleep(time.Second)
	after, err := cpu.Get()
	if err != nil {
		return 0, err
	}
	total := float64(after.Total - before.Total)
	if total == 0 {
		return 0, nil
	}
	return int64(100 - float64(after.Idle-before.Idle)/total*100), nil
}

func (m *HostMetrics) selectNetworkInterface(stats []network.Stats) (network.Stats, error) {
	for _, nd := range stats {
		if nd.Name == m.networkInterface {
			return nd, nil
		}
	}
	return network.Stats{}, fmt.Errorf("no interface found, interface %s doesn't exist", m.networkInterface)
}

// GetNetwork get rx/tx bytes for the interface over one second
func (m *HostMetrics) GetNetwork() (int64, int64, error) {
	before, err := network.Get()
	if err != nil {
		return 0, 0, err
	}
	beforeData, err := m.selectNetworkInterface(before)
	if err != nil {
		return 0, 0, err
	}
	time.Sleep(time.Second)
	after, err := network.Get()
	if err != nil {
		return 0, 0, err
	}
	afterData, err := m.selectNetworkInterface(after)
	if err != nil {
		return 0, 0, err
	}
	return int64(afterData.RxBytes - beforeData.RxBytes), int64(afterData.TxBytes - beforeData.TxBytes), nil
}

func (m *HostMetrics) update() {
	if cpuUserSystem, err := m.GetCPU(); err != nil {
		log.Infof("[ OS Metrics ] failed to get cpu metrics: %s", err)
	} else {
		m.cpuUserSystemPercent.Update(cpuUserSystem)
	}
	if mem, err := memory.Get(); err != nil {
		log.Infof("[ OS Metrics ] failed to get memory metrics: %s", err)
	} else {
		m.memTotal.Update(int64(mem.Total))
		m.memFree.Update(int64(mem.Free))
		m.memUsed.Update(int64(mem.Used))
		m.memCached.Update(int64(mem.Cached))
		m.memSwapTotal.Update(int64(mem.SwapTotal))
		m.memSwapUsed.Update(int64(mem.SwapUsed))
		m.memSwapFree.Update(int64(mem.SwapFree))
	}
	if rx, tx, err := m.GetNetwork(); err != nil {
		log.Infof("[ OS Metrics ] failed to get network metrics: %s", err)
	} else {
		m.rx.Update(rx)
		m.tx.Update(tx)
	}
}

// Watch updates generator host metrics until ctx is done
func (m *HostMetrics) Watch(ctx context.Context, intervalSec int) {
	go func() {
		ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.update()
			}
		}
	}()
}
