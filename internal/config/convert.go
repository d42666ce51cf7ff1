package config

import "github.com/danmuck/scramctl/internal/discovery"

// Endpoints converts inventory entries for the connect loop.
func Endpoints(entries []ServerEntry) []discovery.Endpoint {
	out := make([]discovery.Endpoint, 0, len(entries))
	for _, entry := range entries {
		out = append(out, discovery.Endpoint{
			Host:  entry.Host,
			Port:  entry.Port,
			Attrs: map[string]string{"name": entry.Name},
		})
	}
	return out
}
