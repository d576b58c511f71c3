package dist

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical options for deterministic encoding, so
// content hashes are stable across hosts.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("dist: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalProgram serializes a ProgramImage to CBOR bytes.
func MarshalProgram(img *ProgramImage) ([]byte, error) {
	return cborEncMode.Marshal(img)
}

// UnmarshalProgram deserializes a ProgramImage from CBOR bytes and
// validates its magic and version.
func UnmarshalProgram(data []byte) (*ProgramImage, error) {
	var img ProgramImage
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("dist: unmarshal program: %w", err)
	}
	if img.Magic != ImageMagic {
		return nil, fmt.Errorf("dist: invalid image magic %q", img.Magic)
	}
	if img.Version > ImageVersion {
		return nil, fmt.Errorf("dist: image version %d is newer than supported version %d",
			img.Version, ImageVersion)
	}
	return &img, nil
}

// HashProgram returns the SHA-256 content hash of the image's canonical
// encoding.
func HashProgram(img *ProgramImage) ([32]byte, error) {
	data, err := MarshalProgram(img)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}

// VerifyProgram re-hashes the image and compares against the declared
// hash.
func VerifyProgram(img *ProgramImage, declared [32]byte) error {
	computed, err := HashProgram(img)
	if err != nil {
		return fmt.Errorf("dist: hashing failed: %w", err)
	}
	if computed != declared {
		return fmt.Errorf("dist: hash mismatch: declared %x, computed %x", declared, computed)
	}
	return nil
}
