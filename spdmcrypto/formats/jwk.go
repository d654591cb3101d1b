// Package formats serializes raw keys (local certificate chain leaf keys,
// ephemeral DHE keys) to and from JWK, the
// same wire format the teacher uses for its RFC-9421 key material.
package formats

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

var (
	ErrUnsupportedKeyType  = errors.New("formats: unsupported key type for JWK")
	ErrMissingPrivateField = errors.New("formats: JWK is missing its private key field")
)

// JWK is a minimal JSON Web Key, covering exactly the curves/algorithms
// spdmcrypto negotiates: P-256/P-384 and X25519 (OKP/EC), Ed25519 (OKP),
// secp256k1 (EC), and RSA.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
	D   string `json:"d,omitempty"`
	Alg string `json:"alg,omitempty"`
}

func b64(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func unb64(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }

// ExportPrivate serializes a private key. key must be one of:
// *ecdh.PrivateKey, *ecdsa.PrivateKey, ed25519.PrivateKey, *rsa.PrivateKey,
// or *secp256k1.PrivateKey.
func ExportPrivate(key any) ([]byte, error) {
	jwk := JWK{}
	switch k := key.(type) {
	case *ecdh.PrivateKey:
		pub := k.PublicKey()
		jwk.Kty, jwk.Crv, jwk.Alg = "OKP", crvForECDH(k.Curve()), "ECDH-ES"
		jwk.X = b64(pub.Bytes())
		jwk.D = b64(k.Bytes())
	case *ecdsa.PrivateKey:
		jwk.Kty, jwk.Crv, jwk.Alg = "EC", k.Curve.Params().Name, "ES256"
		jwk.X = b64(k.X.Bytes())
		jwk.Y = b64(k.Y.Bytes())
		jwk.D = b64(k.D.Bytes())
	case ed25519.PrivateKey:
		jwk.Kty, jwk.Crv, jwk.Alg = "OKP", "Ed25519", "EdDSA"
		jwk.X = b64(k.Public().(ed25519.PublicKey))
		jwk.D = b64(k.Seed())
	case *rsa.PrivateKey:
		jwk.Kty, jwk.Alg = "RSA", "RS256"
		jwk.N = b64(k.N.Bytes())
		jwk.E = b64(big.NewInt(int64(k.E)).Bytes())
		jwk.D = b64(k.D.Bytes())
	case *secp256k1.PrivateKey:
		pub := k.PubKey()
		jwk.Kty, jwk.Crv, jwk.Alg = "EC", "secp256k1", "ES256K"
		jwk.X = b64(pub.X().Bytes())
		jwk.Y = b64(pub.Y().Bytes())
		jwk.D = b64(k.Serialize())
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKeyType, key)
	}
	return json.Marshal(jwk)
}

// ExportPublic serializes only the public half of key.
func ExportPublic(key any) ([]byte, error) {
	jwk := JWK{}
	switch k := key.(type) {
	case *ecdh.PublicKey:
		jwk.Kty, jwk.Crv, jwk.Alg = "OKP", crvForECDH(k.Curve()), "ECDH-ES"
		jwk.X = b64(k.Bytes())
	case *ecdsa.PublicKey:
		jwk.Kty, jwk.Crv, jwk.Alg = "EC", k.Curve.Params().Name, "ES256"
		jwk.X = b64(k.X.Bytes())
		jwk.Y = b64(k.Y.Bytes())
	case ed25519.PublicKey:
		jwk.Kty, jwk.Crv, jwk.Alg = "OKP", "Ed25519", "EdDSA"
		jwk.X = b64(k)
	case *rsa.PublicKey:
		jwk.Kty, jwk.Alg = "RSA", "RS256"
		jwk.N = b64(k.N.Bytes())
		jwk.E = b64(big.NewInt(int64(k.E)).Bytes())
	case *secp256k1.PublicKey:
		jwk.Kty, jwk.Crv, jwk.Alg = "EC", "secp256k1", "ES256K"
		jwk.X = b64(k.X().Bytes())
		jwk.Y = b64(k.Y().Bytes())
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKeyType, key)
	}
	return json.Marshal(jwk)
}

func crvForECDH(curve ecdh.Curve) string {
	switch curve {
	case ecdh.X25519():
		return "X25519"
	case ecdh.P256():
		return "P-256"
	case ecdh.P384():
		return "P-384"
	default:
		return "unknown"
	}
}

func curveForName(name string) (ecdh.Curve, error) {
	switch name {
	case "X25519":
		return ecdh.X25519(), nil
	case "P-256":
		return ecdh.P256(), nil
	case "P-384":
		return ecdh.P384(), nil
	default:
		return nil, fmt.Errorf("%w: ECDH curve %q", ErrUnsupportedKeyType, name)
	}
}

// ImportPrivate parses data back into a private key of the concrete type
// ExportPrivate produced it from. NIST-curve EC keys (those ExportPrivate
// writes from *ecdsa.PrivateKey) are not imported; they return
// ErrUnsupportedKeyType.
func ImportPrivate(data []byte) (any, error) {
	var jwk JWK
	if err := json.Unmarshal(data, &jwk); err != nil {
		return nil, fmt.Errorf("formats: unmarshal JWK: %w", err)
	}
	if jwk.D == "" {
		return nil, ErrMissingPrivateField
	}
	d, err := unb64(jwk.D)
	if err != nil {
		return nil, fmt.Errorf("formats: decode private field: %w", err)
	}

	switch jwk.Kty {
	case "OKP":
		switch jwk.Crv {
		case "Ed25519":
			return ed25519.NewKeyFromSeed(d), nil
		default:
			curve, err := curveForName(jwk.Crv)
			if err != nil {
				return nil, err
			}
			return curve.NewPrivateKey(d)
		}
	case "EC":
		if jwk.Crv == "secp256k1" {
			priv := secp256k1.PrivKeyFromBytes(d)
			return priv, nil
		}
		return nil, fmt.Errorf("%w: NIST EC private key import not used by spdm-go (keys stay as ecdh.PrivateKey)", ErrUnsupportedKeyType)
	case "RSA":
		n, err := unb64(jwk.N)
		if err != nil {
			return nil, err
		}
		e, err := unb64(jwk.E)
		if err != nil {
			return nil, err
		}
		return &rsa.PrivateKey{
			PublicKey: rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(new(big.Int).SetBytes(e).Int64())},
			D:         new(big.Int).SetBytes(d),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, jwk.Kty)
	}
}

// ImportPublic parses data back into a public key. NIST-curve EC keys
// (those ExportPublic writes from *ecdsa.PublicKey) are not imported; they
// return ErrUnsupportedKeyType.
func ImportPublic(data []byte) (any, error) {
	var jwk JWK
	if err := json.Unmarshal(data, &jwk); err != nil {
		return nil, fmt.Errorf("formats: unmarshal JWK: %w", err)
	}

	switch jwk.Kty {
	case "OKP":
		x, err := unb64(jwk.X)
		if err != nil {
			return nil, err
		}
		switch jwk.Crv {
		case "Ed25519":
			return ed25519.PublicKey(x), nil
		default:
			curve, err := curveForName(jwk.Crv)
			if err != nil {
				return nil, err
			}
			return curve.NewPublicKey(x)
		}
	case "EC":
		xBytes, err := unb64(jwk.X)
		if err != nil {
			return nil, err
		}
		yBytes, err := unb64(jwk.Y)
		if err != nil {
			return nil, err
		}
		if jwk.Crv == "secp256k1" {
			x := new(secp256k1.FieldVal)
			y := new(secp256k1.FieldVal)
			x.SetByteSlice(xBytes)
			y.SetByteSlice(yBytes)
			return secp256k1.NewPublicKey(x, y), nil
		}
		return nil, fmt.Errorf("%w: NIST EC public key import not used by spdm-go (keys stay as ecdh.PublicKey)", ErrUnsupportedKeyType)
	case "RSA":
		n, err := unb64(jwk.N)
		if err != nil {
			return nil, err
		}
		e, err := unb64(jwk.E)
		if err != nil {
			return nil, err
		}
		return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(new(big.Int).SetBytes(e).Int64())}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, jwk.Kty)
	}
}
