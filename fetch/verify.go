package fetch

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // npm shasum is sha1
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"
)

// ErrIntegrity is returned when a downloaded tarball does not match the
// digest the registry published for it.
var ErrIntegrity = errors.New("integrity check failed")

// strongest first
var sriAlgorithms = []struct {
	name string
	new  func() hash.Hash
}{
	{"sha512", sha512.New},
	{"sha384", sha512.New384},
	{"sha256", sha256.New},
	{"sha1", sha1.New},
}

type expectation struct {
	algo string
	h    hash.Hash
	want []byte
}

// pickExpectation chooses the strongest usable digest from an SRI string,
// falling back to the hex shasum. It returns nil when nothing can be checked.
func pickExpectation(integrity, shasum string) *expectation {
	fields := strings.Fields(integrity)
	for _, alg := range sriAlgorithms {
		for _, f := range fields {
			name, value, ok := strings.Cut(f, "-")
			if !ok || name != alg.name {
				continue
			}
			if i := strings.IndexByte(value, '?'); i >= 0 {
				value = value[:i]
			}
			want, err := base64.StdEncoding.DecodeString(value)
			if err != nil {
				continue
			}
			return &expectation{algo: alg.name, h: alg.new(), want: want}
		}
	}
	if shasum != "" {
		if want, err := hex.DecodeString(shasum); err == nil {
			return &expectation{algo: "sha1", h: sha1.New(), want: want} //nolint:gosec
		}
	}
	return nil
}

type verifyingReader struct {
	rc   io.ReadCloser
	exp  *expectation
	url  string
	done bool
}

// Verify wraps rc so that reading it to EOF checks the content against
// integrity (an SRI string) or shasum. A mismatch turns the final io.EOF
// into an error wrapping ErrIntegrity. With neither digest set rc is
// returned as is.
func Verify(rc io.ReadCloser, url, integrity, shasum string) io.ReadCloser {
	exp := pickExpectation(integrity, shasum)
	if exp == nil {
		return rc
	}
	return &verifyingReader{rc: rc, exp: exp, url: url}
}

func (v *verifyingReader) Read(p []byte) (int, error) {
	n, err := v.rc.Read(p)
	if n > 0 {
		_, _ = v.exp.h.Write(p[:n])
	}
	if errors.Is(err, io.EOF) && !v.done {
		v.done = true
		if got := v.exp.h.Sum(nil); !bytes.Equal(got, v.exp.want) {
			integrityFailures.Inc()
			return n, fmt.Errorf("%w: %s %s: got %s", ErrIntegrity, v.url, v.exp.algo,
				base64.StdEncoding.EncodeToString(got))
		}
	}
	return n, err
}

func (v *verifyingReader) Close() error {
	return v.rc.Close()
}
