package signatures

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hanpama/querysign/internal/signer"
)

// DefaultOutput is the file name used when no output path is configured.
const DefaultOutput = "signatures.json"

// Marshal encodes m as a JSON object with sorted keys and tab indentation.
// There is no trailing newline.
func Marshal(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "\t")
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// WriteFile writes the signature map to path. The file is replaced
// atomically: on error the previous content, if any, is left untouched.
func WriteFile(path string, m map[string]string) error {
	data, err := Marshal(m)
	if err != nil {
		return fmt.Errorf("encode signatures: %w", err)
	}
	return writeAtomic(path, data)
}

// Manifest is a detailed listing of signed operations.
type Manifest struct {
	Format     string              `json:"format"`
	Version    int                 `json:"version"`
	Algorithm  string              `json:"algorithm"`
	Operations []ManifestOperation `json:"operations"`
}

type ManifestOperation struct {
	Name      string `json:"name"`
	Signature string `json:"signature"`
	Kind      string `json:"kind,omitempty"`
	Source    string `json:"source"`
}

// NewManifest builds a manifest from entries. Sources are made relative to
// root when possible.
func NewManifest(root string, entries []Entry) Manifest {
	m := Manifest{
		Format:     "querysign",
		Version:    1,
		Algorithm:  signer.Algorithm,
		Operations: make([]ManifestOperation, 0, len(entries)),
	}
	for _, e := range entries {
		src := e.Source
		if rel, err := filepath.Rel(root, src); err == nil {
			src = filepath.ToSlash(rel)
		}
		m.Operations = append(m.Operations, ManifestOperation{
			Name:      e.Name,
			Signature: e.Signature,
			Kind:      e.Kind,
			Source:    src,
		})
	}
	return m
}

// WriteManifest writes m as indented JSON to path, atomically.
func WriteManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "\t")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return writeAtomic(path, append(data, '\n'))
}

func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
