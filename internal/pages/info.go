package pages

import "time"

// PageInfo is a point-in-time summary of one registered page.
type PageInfo struct {
	Path        string    `json:"path" yaml:"path"`
	LogicalName string    `json:"logical_name,omitempty" yaml:"logical_name,omitempty"`
	Status      string    `json:"status" yaml:"status"`
	Error       string    `json:"error,omitempty" yaml:"error,omitempty"`
	BuiltAt     time.Time `json:"built_at,omitempty" yaml:"built_at,omitempty"`
	Attempts    int64     `json:"attempts" yaml:"attempts"`
}

// Pages summarizes every registered page, sorted by path.
func (e *Engine) Pages() []PageInfo {
	entries := e.registry.Entries()
	infos := make([]PageInfo, 0, len(entries))
	for _, entry := range entries {
		info := PageInfo{
			Path:        entry.Path(),
			LogicalName: entry.LogicalName(),
			Status:      entry.Status().String(),
			BuiltAt:     entry.BuiltAt(),
			Attempts:    entry.Attempts(),
		}
		if err := entry.LastError(); err != nil {
			info.Error = err.Error()
		}
		infos = append(infos, info)
	}
	return infos
}
