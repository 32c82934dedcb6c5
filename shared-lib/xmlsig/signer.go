package xmlsig

import (
	"encoding/base64"
	"fmt"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/libreadept/adl/shared-lib/crypto"
)

// Signer attaches ADEPT signatures to request elements.
type Signer struct {
	log *zap.SugaredLogger
}

type SignerOption = func(*Signer)

func WithLogger(log *zap.SugaredLogger) SignerOption {
	return func(s *Signer) {
		s.log = log
	}
}

func NewSigner(opts ...SignerOption) *Signer {
	s := &Signer{log: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signature returns the base64 signature of el without modifying it.
func (s *Signer) Signature(el *etree.Element, privateKeyDER []byte) (string, error) {
	canon, err := Canonicalize(el)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize <%s>: %w", el.Tag, err)
	}
	digest := Hash(canon)
	sig, err := crypto.RawRSASign(digest[:], privateKeyDER)
	if err != nil {
		return "", fmt.Errorf("failed to sign <%s>: %w", el.Tag, err)
	}
	s.log.Debugw("signed element", "element", el.Tag, "digest", fmt.Sprintf("%x", digest))
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Sign appends a <signature> child to el and returns el.
func (s *Signer) Sign(el *etree.Element, privateKeyDER []byte) (*etree.Element, error) {
	value, err := s.Signature(el, privateKeyDER)
	if err != nil {
		return nil, err
	}
	el.CreateElement("signature").SetText(value)
	return el, nil
}
