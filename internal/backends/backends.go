// Package backends maps the api name of a library to its adapter.
package backends

import (
	"fmt"
	"sort"

	"opacbridge/internal/backends/koha"
	"opacbridge/internal/backends/netbiblio"
	"opacbridge/internal/backends/slub"
	"opacbridge/internal/components/assert"
	"opacbridge/internal/components/telemetry"
	"opacbridge/internal/i18n"
	"opacbridge/internal/opac"
	"opacbridge/internal/transport"
)

// Deps are the collaborators shared by all adapters of one session.
type Deps struct {
	Transport transport.Transport
	Strings   i18n.Provider
	Telemetry telemetry.API
}

type Constructor func(lib opac.Library, deps Deps) (opac.Adapter, error)

var registry = map[string]Constructor{
	"koha": func(lib opac.Library, deps Deps) (opac.Adapter, error) {
		return koha.New(lib, deps.Transport, deps.Strings, deps.Telemetry)
	},
	"slub": func(lib opac.Library, deps Deps) (opac.Adapter, error) {
		return slub.New(lib, deps.Transport, deps.Strings, deps.Telemetry)
	},
	"netbiblio": func(lib opac.Library, deps Deps) (opac.Adapter, error) {
		return netbiblio.New(lib, deps.Transport, deps.Strings, deps.Telemetry)
	},
}

// Open creates a new adapter instance for lib. Every call returns an
// independent instance with its own session.
func Open(lib opac.Library, deps Deps) (opac.Adapter, error) {
	assert.NotNil(deps.Transport)
	assert.NotNil(deps.Strings)
	assert.NotNil(deps.Telemetry)

	constructor, ok := registry[lib.API]
	if !ok {
		return nil, fmt.Errorf("library '%s': no adapter for api '%s'", lib.Ident, lib.API)
	}
	adapter, err := constructor(lib, deps)
	if err != nil {
		return nil, fmt.Errorf("library '%s': %w", lib.Ident, err)
	}
	return adapter, nil
}

// APIs lists the supported api names.
func APIs() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Find returns the library with the given ident.
func Find(libraries []opac.Library, ident string) (opac.Library, error) {
	for _, lib := range libraries {
		if lib.Ident == ident {
			return lib, nil
		}
	}
	return opac.Library{}, fmt.Errorf("unknown library '%s'", ident)
}
