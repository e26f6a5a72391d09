// Package uploads serves signed direct-upload parameters for the media host.
package uploads

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"wayfinder/internal/resources"
)

// SignerConfig holds the media host credentials.
type SignerConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Signer produces upload signatures. The media host recomputes the digest
// from the same parameters and the shared secret.
type Signer struct {
	cfg SignerConfig
	now func() time.Time
}

func NewSigner(cfg SignerConfig) (*Signer, error) {
	if cfg.APISecret == "" {
		return nil, errors.New("upload API secret is required")
	}
	if cfg.Folder == "" {
		return nil, errors.New("upload folder is required")
	}
	return &Signer{cfg: cfg, now: time.Now}, nil
}

// Sign returns signed parameters valid from now.
func (s *Signer) Sign() resources.UploadSignature {
	ts := s.now().Unix()
	return resources.UploadSignature{
		Signature: s.digest(s.cfg.Folder, ts),
		Timestamp: ts,
		CloudName: s.cfg.CloudName,
		APIKey:    s.cfg.APIKey,
		Folder:    s.cfg.Folder,
	}
}

// Verify reports whether sig was produced by this signer's secret.
func (s *Signer) Verify(sig resources.UploadSignature) bool {
	return sig.Signature == s.digest(sig.Folder, sig.Timestamp)
}

// digest signs the parameters sorted by name, joined as a query string, with
// the secret appended.
func (s *Signer) digest(folder string, timestamp int64) string {
	payload := fmt.Sprintf("folder=%s&timestamp=%d%s", folder, timestamp, s.cfg.APISecret)
	sum := sha1.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}
