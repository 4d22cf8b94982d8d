package types

// SystemStats is a point-in-time snapshot of the managed server, assembled
// from remote shell probes.
type SystemStats struct {
	CPUUsage    float64
	MemoryUsage float64
	DiskUsage   float64

	NginxRunning      bool
	PostgresqlRunning bool

	ProcessCount  int
	ProcessOnline int
}

// SiteStatus is the live status of one enabled site.
type SiteStatus struct {
	Domain      string
	HTTPSStatus string

	// SSLDaysLeft is negative when no certificate could be inspected.
	SSLDaysLeft int
	HasSSL      bool

	ProcessRunning bool
}

// Process is one supervisor entry, as reported by the JSON process list.
type Process struct {
	Name   string
	Status string
}

func (p Process) Online() bool {
	return p.Status == "online"
}
