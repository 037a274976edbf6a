package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

// artifactFile is one regular file inside an artifact, identified by
// its slash-separated path relative to the artifact root.
type artifactFile struct {
	rel    string
	size   int64
	sha256 string
}

// digestArtifact computes the content digest of an artifact directory:
// SHA-256 over every regular file in relative-path order, each framed
// as "file\0" + path + "\0" + bytes + "\0". The framing makes file
// boundaries part of the hash, so moving bytes between files changes
// the digest even when the concatenation does not.
func digestArtifact(dir string) (values.Digest, []artifactFile, error) {
	fsys := os.DirFS(dir)

	var files []artifactFile
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		// The root-level provenance manifest describes the artifact and
		// cannot cover itself.
		if p == ProvenanceFileName {
			return nil
		}
		files = append(files, artifactFile{rel: p})
		return nil
	})
	if err != nil {
		return values.Digest{}, nil, fmt.Errorf("walking artifact %s: %w", dir, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].rel < files[j].rel })

	hasher := sha256.New()
	for i := range files {
		data, err := fs.ReadFile(fsys, files[i].rel)
		if err != nil {
			return values.Digest{}, nil, fmt.Errorf("reading %s: %w", files[i].rel, err)
		}
		hasher.Write([]byte("file\x00"))
		hasher.Write([]byte(files[i].rel))
		hasher.Write([]byte{0})
		hasher.Write(data)
		hasher.Write([]byte{0})

		sum := sha256.Sum256(data)
		files[i].size = int64(len(data))
		files[i].sha256 = hex.EncodeToString(sum[:])
	}

	var sum [sha256.Size]byte
	copy(sum[:], hasher.Sum(nil))
	return values.NewDigestFromSum(sum), files, nil
}
