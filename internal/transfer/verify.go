package transfer

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/mkarpin/blobfetch/internal/domain"
)

// IntegrityVerifier compares a downloaded file against the checksum the
// remote store published for the object.
type IntegrityVerifier struct {
	logger *zap.Logger
}

// NewIntegrityVerifier creates a new IntegrityVerifier.
func NewIntegrityVerifier(logger *zap.Logger) *IntegrityVerifier {
	return &IntegrityVerifier{logger: logger}
}

// Verify computes the MD5 checksum of the file at path and compares it with
// expectedChecksum (hex). Objects without a published checksum pass
// trivially. On mismatch the file is retained; disposition is the caller's
// decision.
func (v *IntegrityVerifier) Verify(path, expectedChecksum string) error {
	if expectedChecksum == "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: open local file: %v", domain.ErrChecksumMismatch, err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("%w: read local file: %v", domain.ErrChecksumMismatch, err)
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(actual, expectedChecksum) {
		v.logger.Warn("checksum mismatch",
			zap.String("path", path),
			zap.String("expected", expectedChecksum),
			zap.String("actual", actual))
		return fmt.Errorf("%w: expected %s, got %s", domain.ErrChecksumMismatch, expectedChecksum, actual)
	}

	return nil
}
