package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultSourcesFile is the sources file looked up when none is given.
const DefaultSourcesFile = "sources.toml"

// Source types accepted in the sources file.
const (
	SourceTypeWebcam = "webcam"
	SourceTypeRTSP   = "rtsp"
)

// ErrConfiguration marks every error that must stop the service from starting.
var ErrConfiguration = errors.New("configuration error")

// Error describes one invalid configuration value.
type Error struct {
	Source  string // source id, empty for file-level problems
	Field   string
	Message string
}

func (e *Error) Error() string {
	switch {
	case e.Source != "" && e.Field != "":
		return fmt.Sprintf("source %q: %s: %s", e.Source, e.Field, e.Message)
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	default:
		return e.Message
	}
}

// Unwrap lets errors.Is(err, ErrConfiguration) match.
func (e *Error) Unwrap() error {
	return ErrConfiguration
}

// SourceConfig describes one camera.
type SourceConfig struct {
	ID    string `toml:"id"`
	Name  string `toml:"name,omitempty"`
	Type  string `toml:"type"`
	Index *int   `toml:"index,omitempty"`
	URL   string `toml:"url,omitempty"`
}

// DisplayName returns Name, falling back to ID.
func (s SourceConfig) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// SourcesFile is the on-disk layout of the sources file.
type SourcesFile struct {
	Sources []SourceConfig `toml:"sources"`
}

// LoadSources reads and validates a sources file.
func LoadSources(path string) ([]SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read sources file: %w", ErrConfiguration, err)
	}

	var file SourcesFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrConfiguration, path, err)
	}

	for i := range file.Sources {
		file.Sources[i].Type = strings.ToLower(strings.TrimSpace(file.Sources[i].Type))
		file.Sources[i].ID = strings.TrimSpace(file.Sources[i].ID)
	}

	if err := ValidateSources(file.Sources); err != nil {
		return nil, err
	}
	return file.Sources, nil
}

// ValidateSources checks a source list. All problems are reported together.
func ValidateSources(sources []SourceConfig) error {
	if len(sources) == 0 {
		return &Error{Field: "sources", Message: "at least one source is required"}
	}

	var errs []error
	seen := make(map[string]bool, len(sources))
	for i, src := range sources {
		if src.ID == "" {
			errs = append(errs, &Error{Field: fmt.Sprintf("sources[%d].id", i), Message: "is required"})
		} else if !validID(src.ID) {
			errs = append(errs, &Error{Source: src.ID, Field: "id", Message: "may only contain letters, digits, '-' and '_'"})
		} else if seen[src.ID] {
			errs = append(errs, &Error{Source: src.ID, Field: "id", Message: "duplicate source id"})
		}
		seen[src.ID] = true

		if err := src.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// validID reports whether id is usable verbatim as a broadcast subject token,
// so that distinct ids never share a subject.
func validID(id string) bool {
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return id != ""
}

// Validate checks the type-specific fields of one source.
func (s SourceConfig) Validate() error {
	switch s.Type {
	case SourceTypeWebcam:
		if s.Index == nil {
			return &Error{Source: s.ID, Field: "index", Message: "is required for webcam sources"}
		}
		if *s.Index < 0 {
			return &Error{Source: s.ID, Field: "index", Message: fmt.Sprintf("must be >= 0, got %d", *s.Index)}
		}
	case SourceTypeRTSP:
		if s.URL == "" {
			return &Error{Source: s.ID, Field: "url", Message: "is required for rtsp sources"}
		}
		u, err := url.Parse(s.URL)
		if err != nil || u.Scheme == "" {
			return &Error{Source: s.ID, Field: "url", Message: fmt.Sprintf("invalid stream url %q", s.URL)}
		}
	case "":
		return &Error{Source: s.ID, Field: "type", Message: "is required"}
	default:
		return &Error{Source: s.ID, Field: "type", Message: fmt.Sprintf("unknown source type %q", s.Type)}
	}
	return nil
}

// ValidatePort reports an out-of-range TCP port.
func ValidatePort(field string, port int) error {
	if port < 1 || port > 65535 {
		return &Error{Field: field, Message: fmt.Sprintf("port %d out of range", port)}
	}
	return nil
}

// ValidateCellSize reports a non-positive composite cell size.
func ValidateCellSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return &Error{Field: "cell size", Message: fmt.Sprintf("must be positive, got %dx%d", width, height)}
	}
	return nil
}
