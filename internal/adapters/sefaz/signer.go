package sefaz

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1" // authority mandates rsa-sha1
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	"software.sslmate.com/src/go-pkcs12"

	"gestaoplus/ms_nfse_core/internal/core/certificate"
)

const c14nAlgorithm = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"

// Signer holds the key material recovered from an A1 PKCS#12
// container and produces the two signatures the São Paulo protocol
// requires: the fixed-string RPS signatures and the enveloped XML-DSig
// signature over the whole request document.
type Signer struct {
	key  *rsa.PrivateKey
	cert *x509.Certificate
}

// NewSigner decodes the container with the passphrase. Failure modes
// are distinct and all non-retryable.
func NewSigner(container []byte, passphrase string) (*Signer, error) {
	if len(container) == 0 {
		return nil, fmt.Errorf("%w: empty container", ErrCorruptContainer)
	}

	priv, cert, err := pkcs12.Decode(container, passphrase)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, ErrInvalidPassphrase
		}
		return nil, fmt.Errorf("%w: %v", ErrCorruptContainer, err)
	}
	if priv == nil || cert == nil {
		return nil, ErrMissingKeyOrCert
	}

	rsaKey, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: private key is not RSA", ErrMissingKeyOrCert)
	}

	return &Signer{key: rsaKey, cert: cert}, nil
}

// Certificate returns the signing certificate.
func (s *Signer) Certificate() *x509.Certificate {
	return s.cert
}

// Sign takes the builder's output, replaces every plaintext
// Assinatura/AssinaturaCancelamento string with its RSA-SHA1 value,
// and embeds an enveloped Signature element under the document root.
func (s *Signer) Sign(plainXML string) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(plainXML); err != nil {
		return "", fmt.Errorf("parse document to sign: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return "", fmt.Errorf("document to sign has no root element")
	}

	for _, el := range doc.FindElements("//Assinatura") {
		sig, err := s.signASCII(el.Text())
		if err != nil {
			return "", err
		}
		el.SetText(sig)
	}
	for _, el := range doc.FindElements("//AssinaturaCancelamento") {
		sig, err := s.signASCII(el.Text())
		if err != nil {
			return "", err
		}
		el.SetText(sig)
	}

	sigEl, err := s.buildEnvelopedSignature(root)
	if err != nil {
		return "", err
	}
	root.AddChild(sigEl)

	doc.WriteSettings.CanonicalEndTags = true
	signed, err := doc.WriteToString()
	if err != nil {
		return "", fmt.Errorf("serialize signed document: %w", err)
	}
	return signed, nil
}

// signASCII signs the fixed-width authority string with RSA-SHA1 and
// returns it base64-encoded.
func (s *Signer) signASCII(text string) (string, error) {
	hashed := sha1.Sum([]byte(text))
	sig, err := rsa.SignPKCS1v15(nil, s.key, crypto.SHA1, hashed[:])
	if err != nil {
		return "", fmt.Errorf("sign request string: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// buildEnvelopedSignature canonicalizes the root (C14N 2001), digests
// it, signs the SignedInfo and assembles the Signature element with
// the certificate embedded for authority-side verification.
func (s *Signer) buildEnvelopedSignature(root *etree.Element) (*etree.Element, error) {
	c14n := dsig.MakeC14N10RecCanonicalizer()

	canonRoot, err := c14n.Canonicalize(root)
	if err != nil {
		return nil, fmt.Errorf("canonicalize document: %w", err)
	}
	digest := sha1.Sum(canonRoot)

	sigEl := etree.NewElement("Signature")
	sigEl.CreateAttr("xmlns", dsig.Namespace)

	signedInfo := sigEl.CreateElement("SignedInfo")
	signedInfo.CreateElement("CanonicalizationMethod").
		CreateAttr("Algorithm", c14nAlgorithm)
	signedInfo.CreateElement("SignatureMethod").
		CreateAttr("Algorithm", "http://www.w3.org/2000/09/xmldsig#rsa-sha1")

	ref := signedInfo.CreateElement("Reference")
	ref.CreateAttr("URI", "")
	transforms := ref.CreateElement("Transforms")
	transforms.CreateElement("Transform").
		CreateAttr("Algorithm", "http://www.w3.org/2000/09/xmldsig#enveloped-signature")
	transforms.CreateElement("Transform").
		CreateAttr("Algorithm", c14nAlgorithm)
	ref.CreateElement("DigestMethod").
		CreateAttr("Algorithm", "http://www.w3.org/2000/09/xmldsig#sha1")
	ref.CreateElement("DigestValue").
		SetText(base64.StdEncoding.EncodeToString(digest[:]))

	canonSignedInfo, err := c14n.Canonicalize(signedInfo)
	if err != nil {
		return nil, fmt.Errorf("canonicalize SignedInfo: %w", err)
	}
	hashed := sha1.Sum(canonSignedInfo)
	sigBytes, err := rsa.SignPKCS1v15(nil, s.key, crypto.SHA1, hashed[:])
	if err != nil {
		return nil, fmt.Errorf("sign SignedInfo: %w", err)
	}
	sigEl.CreateElement("SignatureValue").
		SetText(base64.StdEncoding.EncodeToString(sigBytes))

	keyInfo := sigEl.CreateElement("KeyInfo")
	keyInfo.CreateElement("X509Data").
		CreateElement("X509Certificate").
		SetText(base64.StdEncoding.EncodeToString(s.cert.Raw))

	return sigEl, nil
}

// ValidateContainer checks an uploaded container decodes with the
// passphrase and reports the certificate's identity and validity
// window so the caller can assess expiry independently.
func ValidateContainer(container []byte, passphrase string) (*certificate.Metadata, error) {
	signer, err := NewSigner(container, passphrase)
	if err != nil {
		return nil, err
	}
	cert := signer.Certificate()
	return &certificate.Metadata{
		SubjectDN:  cert.Subject.String(),
		IssuerDN:   cert.Issuer.String(),
		ValidFrom:  cert.NotBefore,
		ValidUntil: cert.NotAfter,
	}, nil
}
