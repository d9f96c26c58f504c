package api

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/blake2b"

	"github.com/bioneo/stakeledger/internal/capability"
	"github.com/bioneo/stakeledger/internal/config"
)

const (
	HeaderSigner    = "X-Signer"
	HeaderSignature = "X-Signature"

	maxBodyBytes = 1 << 20
)

var errBadSignature = errors.New("signature does not match signer")

type signerKey struct{}

// SignerFrom returns the authenticated caller of the request.
func SignerFrom(ctx context.Context) (capability.Address, bool) {
	s, ok := ctx.Value(signerKey{}).(capability.Address)
	return s, ok && s != ""
}

func WithSigner(ctx context.Context, signer capability.Address) context.Context {
	return context.WithValue(ctx, signerKey{}, signer)
}

// Signer authenticates the caller. In header mode X-Signer is trusted as is.
// In signature mode X-Signer is a hex compressed secp256k1 public key and
// X-Signature a hex DER signature of the blake2b-256 digest of the body; the
// signer address is the normalized public key.
func (m *Middleware) Signer(mode string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			signer := strings.TrimSpace(r.Header.Get(HeaderSigner))
			if signer == "" {
				writeError(w, m.logger, http.StatusUnauthorized, "MISSING_SIGNER", "X-Signer header is required")
				return
			}

			if mode == config.AuthSignature {
				body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
				if err != nil {
					writeError(w, m.logger, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", err.Error())
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))

				addr, err := verifySignature(signer, r.Header.Get(HeaderSignature), body)
				if err != nil {
					m.logger.Warnw("Rejected request signature", "signer", signer, "path", r.URL.Path, "error", err)
					writeError(w, m.logger, http.StatusUnauthorized, "INVALID_SIGNATURE", err.Error())
					return
				}
				signer = string(addr)
			}

			next.ServeHTTP(w, r.WithContext(WithSigner(r.Context(), capability.Address(signer))))
		})
	}
}

func verifySignature(pubHex, sigHex string, body []byte) (capability.Address, error) {
	pubBytes, err := hex.DecodeString(strings.TrimPrefix(pubHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("signer is not hex: %w", err)
	}
	pub, err := secp256k1.ParsePubKey(pubBytes)
	if err != nil {
		return "", fmt.Errorf("invalid signer key: %w", err)
	}
	if sigHex == "" {
		return "", fmt.Errorf("%s header is required", HeaderSignature)
	}
	sigBytes, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("signature is not hex: %w", err)
	}
	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return "", fmt.Errorf("invalid signature: %w", err)
	}

	digest := blake2b.Sum256(body)
	if !sig.Verify(digest[:], pub) {
		return "", errBadSignature
	}
	return capability.Address(hex.EncodeToString(pub.SerializeCompressed())), nil
}
