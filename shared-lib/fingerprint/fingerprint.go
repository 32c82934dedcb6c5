// Package fingerprint derives a stable device fingerprint from the host's
// machine identifier.
package fingerprint

import (
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

var ErrNoMachineID = errors.New("no machine identifier available")

// Source is one place a machine identifier can be read from.
type Source struct {
	Path string
	// UUID sources are normalized before hashing.
	UUID bool
}

// DefaultSources lists the identifiers tried in order.
var DefaultSources = []Source{
	{Path: "/etc/machine-id"},
	{Path: "/var/lib/dbus/machine-id"},
	{Path: "/sys/class/dmi/id/product_uuid", UUID: true},
}

// Compute returns base64(SHA-1(identifier)) for the first readable source.
// machine-id files are hashed as read.
func Compute(sources ...Source) (string, error) {
	if len(sources) == 0 {
		sources = DefaultSources
	}

	var errs []error
	for _, src := range sources {
		raw, err := os.ReadFile(src.Path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if strings.TrimSpace(string(raw)) == "" {
			errs = append(errs, fmt.Errorf("%s is empty", src.Path))
			continue
		}

		if src.UUID {
			id, err := uuid.Parse(strings.TrimSpace(string(raw)))
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid uuid in %s: %w", src.Path, err))
				continue
			}
			raw = []byte(id.String())
		}
		return FromBytes(raw), nil
	}
	return "", fmt.Errorf("%w: %w", ErrNoMachineID, errors.Join(errs...))
}

// FromBytes hashes an identifier into a fingerprint.
func FromBytes(id []byte) string {
	sum := sha1.Sum(id)
	return base64.StdEncoding.EncodeToString(sum[:])
}
