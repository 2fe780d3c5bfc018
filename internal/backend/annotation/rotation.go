package annotation

import (
	"log/slog"
	"math"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/xattr"
)

// DefaultRotationAttribute is the attribute image viewers write the clockwise correction to
const DefaultRotationAttribute = "org.gunzel.spin.rotation#CS"

// RotationStore looks up the clockwise rotation correction for an image.
// Implementations return 0 when nothing usable is stored.
type RotationStore interface {
	Rotation(path string) int
}

// NoopRotationStore is used where files carry no rotation metadata
type NoopRotationStore struct{}

// Rotation always returns 0
func (NoopRotationStore) Rotation(string) int {
	return 0
}

// XattrRotationStore reads the rotation from an extended attribute
type XattrRotationStore struct {
	attribute string
}

// NewXattrRotationStore creates a store reading the given attribute name.
// The name is namespaced for the current platform, see AttributeName.
func NewXattrRotationStore(attribute string) *XattrRotationStore {
	if attribute == "" {
		attribute = DefaultRotationAttribute
	}
	return &XattrRotationStore{attribute: AttributeName(attribute)}
}

// Rotation returns the stored degrees; missing or malformed values yield 0
func (s *XattrRotationStore) Rotation(path string) int {
	raw, err := xattr.Get(path, s.attribute)
	if err != nil {
		slog.Debug("XattrRotationStore: no rotation attribute", "path", path, "attribute", s.attribute, "error", err)
		return 0
	}
	return ParseRotation(string(raw))
}

// ParseRotation parses a stored angle such as "90" or "90.0" and truncates it to whole degrees.
// Values outside the int32 range are treated as malformed.
func ParseRotation(value string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) || f <= math.MinInt32 || f >= math.MaxInt32 {
		return 0
	}
	return int(f)
}

// AttributeName returns the platform form of an attribute name. Linux only accepts
// names inside a namespace, so bare names are placed into "user.".
func AttributeName(name string) string {
	if runtime.GOOS != "linux" {
		return name
	}
	for _, ns := range []string{"user.", "trusted.", "security.", "system."} {
		if strings.HasPrefix(name, ns) {
			return name
		}
	}
	return "user." + name
}

// Supported reports whether extended attributes are available on this platform
func Supported() bool {
	return xattr.XATTR_SUPPORTED
}
