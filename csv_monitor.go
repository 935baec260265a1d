package loadgen

// CSVMonitored enables writing every counted attack call to the manager result log
type CSVMonitored struct {
	Attack
}

func WithCSVMonitor(a Attack) CSVMonitored {
	return CSVMonitored{a}
}

func (m CSVMonitored) monitors() monitorKind {
	return csvMonitor | monitorsOf(m.Attack)
}

func (m CSVMonitored) CheckNames() []string {
	if d, ok := m.Attack.(CheckDeclarer); ok {
		return d.CheckNames()
	}
	return nil
}

func (m CSVMonitored) Clone(r *Runner) Attack {
	return CSVMonitored{m.Attack.Clone(r)}
}
