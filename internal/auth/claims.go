package auth

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/smartrestaurant/gateway/internal/config"
)

// IdentityClaims is the subset of ID token claims the gateway works with.
type IdentityClaims struct {
	Subject     string
	Email       string
	Name        string
	Authorities []string
}

type standardClaims struct {
	Subject string `mapstructure:"sub"`
	Name    string `mapstructure:"name"`
}

// DecodeIdentityClaims decodes subject, email, name and any IdP-granted authorities
// from raw ID token claims. The authorities claim may be a string, a comma separated
// string or a list of strings; a missing claim yields no authorities.
func DecodeIdentityClaims(claims map[string]any, cfg config.OIDCConfig) (IdentityClaims, error) {
	var std standardClaims
	if err := mapstructure.Decode(claims, &std); err != nil {
		return IdentityClaims{}, fmt.Errorf("decode standard claims: %w", err)
	}
	if std.Subject == "" {
		return IdentityClaims{}, fmt.Errorf("claim field sub not found")
	}

	emailClaim := cfg.EmailClaim
	if emailClaim == "" {
		emailClaim = "email"
	}
	email, _ := claims[emailClaim].(string)

	authorities, err := ExtractAuthorities(claims, cfg.AuthoritiesClaim)
	if err != nil {
		return IdentityClaims{}, err
	}

	return IdentityClaims{
		Subject:     std.Subject,
		Email:       strings.TrimSpace(email),
		Name:        std.Name,
		Authorities: authorities,
	}, nil
}

// ExtractAuthorities reads the authorities claim in any of its accepted shapes.
func ExtractAuthorities(claims map[string]any, claimField string) ([]string, error) {
	if claimField == "" {
		return nil, nil
	}
	rawValue, ok := claims[claimField]
	if !ok || rawValue == nil {
		return nil, nil
	}

	if single, ok := rawValue.(string); ok {
		var out []string
		for _, part := range strings.Split(single, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	}

	var list []string
	if err := mapstructure.Decode(rawValue, &list); err != nil {
		return nil, fmt.Errorf("claim field %s is not a string list: %w", claimField, err)
	}
	return list, nil
}
