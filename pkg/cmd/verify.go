// SPDX-FileCopyrightText: Copyright 2026 Carabiner Systems, Inc
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/carabiner-dev/command"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
)

// keySet is a JSON Web Key Set as served from an issuer's jwks endpoint.
type keySet struct {
	Keys []webKey `json:"keys"`
}

// webKey is a single JSON Web Key.
type webKey struct {
	Kty string `json:"kty"` // Key type
	Kid string `json:"kid"` // Key ID
	Use string `json:"use"` // Public key use
	Alg string `json:"alg"` // Algorithm
	// RSA fields
	N string `json:"n"` // RSA modulus
	E string `json:"e"` // RSA exponent
	// EC fields
	Crv string `json:"crv"` // EC curve
	X   string `json:"x"`   // EC X coordinate
	Y   string `json:"y"`   // EC Y coordinate
}

var _ command.OptionsSet = (*VerifyOptions)(nil)

type VerifyOptions struct {
	TokenReadOptions
	ExpectedIssuer string
	SkipExpiry     bool
	SkipSignature  bool
}

var defaultVerifyOptions = VerifyOptions{}

func (vo *VerifyOptions) Validate() error {
	return vo.TokenReadOptions.Validate()
}

func (vo *VerifyOptions) AddFlags(cmd *cobra.Command) {
	vo.TokenReadOptions.AddFlags(cmd)
	cmd.PersistentFlags().StringVar(&vo.ExpectedIssuer, "issuer", "", "expected issuer URL (optional)")
	cmd.PersistentFlags().BoolVar(&vo.SkipExpiry, "skip-expiry", false, "skip expiration check")
	cmd.PersistentFlags().BoolVar(&vo.SkipSignature, "skip-signature", false, "skip signature verification")
}

func (vo *VerifyOptions) Config() *command.OptionsSetConfig {
	return nil
}

func AddVerify(parent *cobra.Command) {
	opts := defaultVerifyOptions

	cmd := &cobra.Command{
		Use:   "verify [path]",
		Short: "Inspect and verify an identity JWT",
		Long: `Inspect and verify an identity JWT: either one the 'jwt' and
'kubernetes' auth methods present to the server, before actually
logging in with it, or one minted by the server's identity engine.

The command decodes the token and checks:
- signature validity, against the issuer's published keys
- expiration (unless --skip-expiry is set)
- the standard claims (iss, sub, aud, exp, iat, ...)

The token is read from stdin if data is piped in, from the file
named by --token or the first argument, and otherwise from the
pod's service account token.`,
		Example: `  # Verify the pod's service account token
  belay verify

  # Verify a token in a file
  belay verify /var/run/secrets/tokens/vault-token

  # Pipe a token in
  cat jwt.txt | belay verify

  # Verify against a specific issuer
  belay verify --issuer "https://token.actions.githubusercontent.com"

  # Verify an identity token minted by the server
  belay verify --issuer "https://vault.example.com:8200/v1/identity/oidc" id-token.jwt`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.TokenPath == "" && len(args) > 0 {
				opts.TokenPath = args[0]
			}
			return opts.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			tokendata, err := opts.ReadToken()
			if err != nil {
				return err
			}

			// Parse without verification first to get at the claims and issuer
			parser := jwt.NewParser(jwt.WithoutClaimsValidation())
			parsedToken, _, err := parser.ParseUnverified(tokendata, jwt.MapClaims{})
			if err != nil {
				return fmt.Errorf("parsing token: %w", err)
			}

			claims, ok := parsedToken.Claims.(jwt.MapClaims)
			if !ok {
				return fmt.Errorf("extracting claims from token")
			}

			issuer, ok := claims["iss"].(string)
			if !ok && !opts.SkipSignature {
				return fmt.Errorf("token has no 'iss' (issuer) claim, required for signature verification")
			}

			var signatureValid bool
			var signatureError error

			if !opts.SkipSignature && issuer != "" {
				signatureValid, signatureError = verifySignature(tokendata, issuer)
			}

			fmt.Println("╭─────────────────────────────────────────────────────────────╮")
			fmt.Println("│                  Identity Token Verification                │")
			fmt.Println("╰─────────────────────────────────────────────────────────────╯")
			fmt.Println()

			fmt.Printf("Algorithm:  %s\n", parsedToken.Header["alg"])
			fmt.Printf("Type:       %s\n\n", parsedToken.Header["typ"])

			fmt.Println("Standard Claims:")
			fmt.Println("─────────────────")

			if iss, ok := claims["iss"].(string); ok {
				fmt.Printf("  Issuer (iss):     %s\n", iss)
			}
			if sub, ok := claims["sub"].(string); ok {
				fmt.Printf("  Subject (sub):    %s\n", sub)
			}
			if aud, ok := claims["aud"]; ok {
				switch v := aud.(type) {
				case string:
					fmt.Printf("  Audience (aud):   %s\n", v)
				case []interface{}:
					fmt.Printf("  Audience (aud):   %v\n", v)
				}
			}

			if exp, ok := claims["exp"].(float64); ok {
				expTime := time.Unix(int64(exp), 0)
				fmt.Printf("  Expires (exp):    %s\n", expTime.Format(time.RFC3339))

				if !opts.SkipExpiry {
					if time.Now().After(expTime) {
						fmt.Printf("                    ❌ EXPIRED (expired %v ago)\n", time.Since(expTime).Round(time.Second))
					} else {
						fmt.Printf("                    ✅ Valid (expires in %v)\n", time.Until(expTime).Round(time.Second))
					}
				}
			}

			if iat, ok := claims["iat"].(float64); ok {
				iatTime := time.Unix(int64(iat), 0)
				fmt.Printf("  Issued At (iat):  %s\n", iatTime.Format(time.RFC3339))
				fmt.Printf("                    (issued %v ago)\n", time.Since(iatTime).Round(time.Second))
			}

			if nbf, ok := claims["nbf"].(float64); ok {
				nbfTime := time.Unix(int64(nbf), 0)
				fmt.Printf("  Not Before (nbf): %s\n", nbfTime.Format(time.RFC3339))
			}

			if jti, ok := claims["jti"].(string); ok {
				fmt.Printf("  JWT ID (jti):     %s\n", jti)
			}

			standardClaims := map[string]bool{
				"iss": true, "sub": true, "aud": true, "exp": true,
				"iat": true, "nbf": true, "jti": true,
			}

			customClaims := make(map[string]interface{})
			for k, v := range claims {
				if !standardClaims[k] {
					customClaims[k] = v
				}
			}

			if len(customClaims) > 0 {
				fmt.Println()
				fmt.Println("Custom Claims:")
				fmt.Println("──────────────")
				customJSON, _ := json.MarshalIndent(customClaims, "  ", "  ")
				fmt.Printf("  %s\n", string(customJSON))
			}

			fmt.Println()
			fmt.Println("Validation:")
			fmt.Println("───────────")
			fmt.Println("  ✅ Token structure is valid")
			fmt.Println("  ✅ Claims can be decoded")

			if !opts.SkipSignature {
				if signatureError != nil {
					fmt.Printf("  ❌ Signature verification FAILED: %v\n", signatureError)
					return fmt.Errorf("signature verification failed: %w", signatureError)
				} else if signatureValid {
					fmt.Println("  ✅ Signature is valid")
				}
			} else {
				fmt.Println("  ⚠️  Signature verification skipped")
			}

			if opts.ExpectedIssuer != "" {
				if iss, ok := claims["iss"].(string); ok && iss == opts.ExpectedIssuer {
					fmt.Printf("  ✅ Issuer matches: %s\n", opts.ExpectedIssuer)
				} else {
					fmt.Printf("  ❌ Issuer mismatch: expected %s\n", opts.ExpectedIssuer)
					return fmt.Errorf("issuer validation failed")
				}
			}

			if !opts.SkipExpiry {
				if exp, ok := claims["exp"].(float64); ok {
					expTime := time.Unix(int64(exp), 0)
					if time.Now().After(expTime) {
						fmt.Println("  ❌ Token is EXPIRED")
						return fmt.Errorf("token is expired")
					} else {
						fmt.Println("  ✅ Token is not expired")
					}
				}
			} else {
				fmt.Println("  ⚠️  Expiration check skipped")
			}

			fmt.Println()
			fmt.Println("✅ Token verification completed successfully")

			return nil
		},
	}
	opts.AddFlags(cmd)
	parent.AddCommand(cmd)
}

// resolveJWKSURL locates the issuer's key set. Issuers with an OIDC
// discovery document (the vault identity engine, GitHub Actions) name
// it there; otherwise fall back to the conventional path.
func resolveJWKSURL(issuer string) string {
	issuer = strings.TrimSuffix(issuer, "/")

	resp, err := http.Get(issuer + "/.well-known/openid-configuration") //nolint:gosec
	if err == nil {
		defer resp.Body.Close() //nolint:errcheck
		if resp.StatusCode == http.StatusOK {
			var discovery struct {
				JWKSURI string `json:"jwks_uri"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&discovery); err == nil && discovery.JWKSURI != "" {
				return discovery.JWKSURI
			}
		}
	}

	return issuer + "/.well-known/jwks.json"
}

// verifySignature verifies the JWT signature using the issuer's JWKS endpoint
func verifySignature(tokenString, issuer string) (bool, error) {
	jwksURL := resolveJWKSURL(issuer)

	resp, err := http.Get(jwksURL) //nolint:gosec
	if err != nil {
		return false, fmt.Errorf("fetching JWKS from %s: %w", jwksURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("reading JWKS response: %w", err)
	}

	var jwks keySet
	if err := json.Unmarshal(body, &jwks); err != nil {
		return false, fmt.Errorf("parsing JWKS: %w", err)
	}

	// Reparse the token to read the kid from its header
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	parsedToken, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return false, fmt.Errorf("parsing token header: %w", err)
	}

	kid, ok := parsedToken.Header["kid"].(string)
	if !ok {
		// No kid, try the first key
		if len(jwks.Keys) == 0 {
			return false, fmt.Errorf("no keys found in JWKS")
		}
		kid = jwks.Keys[0].Kid
	}

	var matchingKey *webKey
	for i := range jwks.Keys {
		if jwks.Keys[i].Kid == kid {
			matchingKey = &jwks.Keys[i]
			break
		}
	}

	if matchingKey == nil {
		return false, fmt.Errorf("key with kid=%q not found in JWKS", kid)
	}

	var publicKey interface{}
	switch matchingKey.Kty {
	case "RSA":
		rsaKey, err := jwkToRSAPublicKey(matchingKey)
		if err != nil {
			return false, fmt.Errorf("converting JWK to RSA public key: %w", err)
		}
		publicKey = rsaKey
	case "EC":
		ecKey, err := jwkToECDSAPublicKey(matchingKey)
		if err != nil {
			return false, fmt.Errorf("converting JWK to ECDSA public key: %w", err)
		}
		publicKey = ecKey
	default:
		return false, fmt.Errorf("unsupported key type: %s (only RSA and EC are supported)", matchingKey.Kty)
	}

	verifiedToken, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// The signing method has to match the key type
		switch matchingKey.Kty {
		case "RSA":
			if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v (expected RSA)", token.Header["alg"])
			}
		case "EC":
			if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v (expected ECDSA)", token.Header["alg"])
			}
		}
		return publicKey, nil
	})

	if err != nil {
		return false, err
	}

	return verifiedToken.Valid, nil
}

// jwkToRSAPublicKey converts a JWK to an RSA public key
func jwkToRSAPublicKey(jwk *webKey) (*rsa.PublicKey, error) {
	if jwk.Kty != "RSA" {
		return nil, fmt.Errorf("unsupported key type: %s (only RSA is supported)", jwk.Kty)
	}

	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)

	var e int
	for _, b := range eBytes {
		e = e*256 + int(b)
	}

	return &rsa.PublicKey{N: n, E: e}, nil
}

// jwkToECDSAPublicKey converts a JWK to an ECDSA public key
func jwkToECDSAPublicKey(jwk *webKey) (*ecdsa.PublicKey, error) {
	if jwk.Kty != "EC" {
		return nil, fmt.Errorf("unsupported key type: %s (only EC is supported)", jwk.Kty)
	}

	var curve elliptic.Curve
	switch jwk.Crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("unsupported curve: %s", jwk.Crv)
	}

	xBytes, err := base64.RawURLEncoding.DecodeString(jwk.X)
	if err != nil {
		return nil, fmt.Errorf("decoding X coordinate: %w", err)
	}

	yBytes, err := base64.RawURLEncoding.DecodeString(jwk.Y)
	if err != nil {
		return nil, fmt.Errorf("decoding Y coordinate: %w", err)
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}
