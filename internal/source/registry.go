package source

import (
	"fmt"
	"io"
	"os"
)

// headerProbeSize is how many leading bytes each format gets for content
// sniffing. Enough for the SQLite magic, OFX headers, and a CSV header row.
const headerProbeSize = 512

// Registry holds the registered input formats in priority order.
type Registry struct {
	formats []Format
}

// NewRegistry creates a registry with the given formats.
func NewRegistry(formats ...Format) *Registry {
	return &Registry{formats: formats}
}

// Register appends a custom format.
func (r *Registry) Register(f Format) {
	r.formats = append(r.formats, f)
}

// ListFormats returns the names of all registered formats.
func (r *Registry) ListFormats() []string {
	names := make([]string, len(r.formats))
	for i, f := range r.formats {
		names[i] = f.Name()
	}
	return names
}

// Get returns a registered format by name.
func (r *Registry) Get(name string) (Format, bool) {
	for _, f := range r.formats {
		if f.Name() == name {
			return f, true
		}
	}
	return nil, false
}

// Find returns the format claiming the file, probing its leading bytes.
func (r *Registry) Find(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}

	header := make([]byte, headerProbeSize)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		f.Close()
		return nil, fmt.Errorf("failed to read header from %s: %w", path, err)
	}
	// EOF is fine: small inputs simply yield a short probe.
	header = header[:n]

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close %s after probing: %w", path, err)
	}

	for _, format := range r.formats {
		if format.CanParse(path, header) {
			return format, nil
		}
	}
	return nil, fmt.Errorf("no input format recognizes %s (registered: %v)", path, r.ListFormats())
}
