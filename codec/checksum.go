package codec

import (
	"encoding/binary"

	"github.com/OneOfOne/xxhash"
	"golang.org/x/crypto/blake2b"

	"github.com/Thema-AI/web-index/cmn"
)

// FileTrailer is appended to every partition file this package writes:
// an 8-byte little-endian xxhash64 of the body followed by a 32-byte
// blake2b-256 digest. Unseal verifies both on every read, including the
// reads a defrag makes of the files it coalesces.
type FileTrailer struct {
	XXHash64 uint64
	Blake2b  [32]byte
}

const trailerSize = 8 + 32

// Seal appends a FileTrailer to body and returns the combined bytes.
func Seal(body []byte) ([]byte, error) {
	digest, err := blake2b.New256(nil)
	if err != nil {
		return nil, cmn.Structuralf("codec: blake2b init: %v", err)
	}
	digest.Write(body)

	out := make([]byte, 0, len(body)+trailerSize)
	out = append(out, body...)
	var sum [8]byte
	binary.LittleEndian.PutUint64(sum[:], xxhash.Checksum64(body))
	out = append(out, sum[:]...)
	out = digest.Sum(out)
	return out, nil
}

// Unseal splits a sealed file back into its body and trailer, verifying
// both checksums. A mismatch is reported as a corrupt partition per the
// error taxonomy.
func Unseal(sealed []byte) (body []byte, err error) {
	if len(sealed) < trailerSize {
		return nil, cmn.CorruptPartitionf("<file>", nil)
	}
	cut := len(sealed) - trailerSize
	body = sealed[:cut]
	wantXXHash := binary.LittleEndian.Uint64(sealed[cut : cut+8])
	wantBlake2b := sealed[cut+8:]

	if xxhash.Checksum64(body) != wantXXHash {
		return nil, cmn.CorruptPartitionf("<file>", nil)
	}
	digest, err := blake2b.New256(nil)
	if err != nil {
		return nil, cmn.Structuralf("codec: blake2b init: %v", err)
	}
	digest.Write(body)
	if !bytesEqual(digest.Sum(nil), wantBlake2b) {
		return nil, cmn.CorruptPartitionf("<file>", nil)
	}
	return body, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
