// Package digest writes the checksum and signature files that accompany every
// artifact in a Maven repository.
package digest

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"os"

	"golang.org/x/crypto/openpgp"
)

// Suffixes of the auxiliary files, in generation order.
const (
	SHA1 = ".sha1"
	MD5  = ".md5"
	ASC  = ".asc"
)

// ErrNoPrivateKey is returned when a keyring holds no usable signing key.
var ErrNoPrivateKey = errors.New("no private key in keyring")

// Generator computes .sha1 and .md5 files, and an armored detached .asc
// signature when a signing key is configured.
type Generator struct {
	signer *openpgp.Entity
}

// Option configures a Generator.
type Option func(*Generator)

// WithSigner signs artifacts with e. e's private key must already be
// decrypted.
func WithSigner(e *openpgp.Entity) Option {
	return func(g *Generator) {
		g.signer = e
	}
}

// New returns a Generator.
func New(opts ...Option) *Generator {
	g := &Generator{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Signs reports whether .asc files are produced.
func (g *Generator) Signs() bool {
	return g.signer != nil
}

// LoadSigningKey reads the first private key from an armored keyring file and
// decrypts it with passphrase when needed.
func LoadSigningKey(path, passphrase string) (*openpgp.Entity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSigningKey(f, passphrase)
}

// ReadSigningKey is LoadSigningKey for an already opened keyring.
func ReadSigningKey(r io.Reader, passphrase string) (*openpgp.Entity, error) {
	ring, err := openpgp.ReadArmoredKeyRing(r)
	if err != nil {
		return nil, fmt.Errorf("reading keyring: %w", err)
	}
	for _, e := range ring {
		if e.PrivateKey == nil {
			continue
		}
		if e.PrivateKey.Encrypted {
			if err := e.PrivateKey.Decrypt([]byte(passphrase)); err != nil {
				return nil, fmt.Errorf("decrypting signing key: %w", err)
			}
		}
		for _, sub := range e.Subkeys {
			if sub.PrivateKey != nil && sub.PrivateKey.Encrypted {
				if err := sub.PrivateKey.Decrypt([]byte(passphrase)); err != nil {
					return nil, fmt.Errorf("decrypting signing subkey: %w", err)
				}
			}
		}
		return e, nil
	}
	return nil, ErrNoPrivateKey
}

// Generate writes the auxiliary files for the artifact at path and returns
// their paths.
func (g *Generator) Generate(ctx context.Context, path string) ([]string, error) {
	s1, m5, err := sums(path)
	if err != nil {
		generated.WithLabelValues("checksum", "error").Inc()
		return nil, fmt.Errorf("hashing %s: %w", path, err)
	}

	written := make([]string, 0, 3)
	for _, f := range []struct {
		suffix string
		sum    string
	}{
		{SHA1, s1},
		{MD5, m5},
	} {
		if err := os.WriteFile(path+f.suffix, []byte(f.sum), 0o644); err != nil {
			generated.WithLabelValues("checksum", "error").Inc()
			return written, err
		}
		written = append(written, path+f.suffix)
	}
	generated.WithLabelValues("checksum", "ok").Add(2)

	if g.signer == nil {
		slog.DebugContext(ctx, "no signing key configured, skipping signature", "path", path)
		return written, nil
	}
	if err := g.sign(path); err != nil {
		generated.WithLabelValues("signature", "error").Inc()
		return written, fmt.Errorf("signing %s: %w", path, err)
	}
	generated.WithLabelValues("signature", "ok").Inc()
	return append(written, path+ASC), nil
}

func sums(path string) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	s1, m5 := sha1.New(), md5.New()
	if _, err := io.Copy(io.MultiWriter(s1, m5), f); err != nil {
		return "", "", err
	}
	return hexSum(s1), hexSum(m5), nil
}

func hexSum(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

func (g *Generator) sign(path string) (err error) {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(path + ASC)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	return openpgp.ArmoredDetachSign(out, g.signer, in, nil)
}
