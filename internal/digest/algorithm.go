package digest

import (
	"crypto/md5"
	"errors"
	"fmt"
	"hash"
	"sort"
	"strings"

	"github.com/minio/sha256-simd"
	"github.com/spaolacci/murmur3"
	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"
)

// DefaultAlgorithm is used for both fingerprint phases unless configured.
const DefaultAlgorithm = "md5"

// ErrUnknownAlgorithm is returned by Lookup for unregistered names.
var ErrUnknownAlgorithm = errors.New("unknown digest algorithm")

// Algorithm is a named digest constructor.
type Algorithm struct {
	Name string
	Size int // digest length in bytes
	New  func() hash.Hash
}

var algorithms = map[string]*Algorithm{
	"md5": {
		Name: "md5",
		Size: md5.Size,
		New:  md5.New,
	},
	"sha256": {
		Name: "sha256",
		Size: sha256.Size,
		New:  sha256.New,
	},
	"sha3-256": {
		Name: "sha3-256",
		Size: 32,
		New:  sha3.New256,
	},
	"blake3": {
		Name: "blake3",
		Size: 32,
		New:  func() hash.Hash { return blake3.New(32, nil) },
	},
	"murmur3": {
		Name: "murmur3",
		Size: 16,
		New:  func() hash.Hash { return murmur3.New128() },
	},
}

// Lookup returns the algorithm registered under name (case-insensitive).
func Lookup(name string) (*Algorithm, error) {
	if name == "" {
		name = DefaultAlgorithm
	}
	alg, ok := algorithms[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, name)
	}
	return alg, nil
}

// Names lists the registered algorithm names in sorted order.
func Names() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
