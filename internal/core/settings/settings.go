package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Environment selects which SEFAZ endpoint receives transmissions.
type Environment string

const (
	EnvironmentHomologation Environment = "homologation"
	EnvironmentProduction   Environment = "production"
)

// ErrNotFound indicates no settings row exists for the issuer.
var ErrNotFound = errors.New("issuer settings not found")

// IssuerSettings carries the per-issuer municipal parameters required
// before any transmission is attempted. The whole struct is validated
// as a unit; a single missing field blocks the draft → processing
// transition.
type IssuerSettings struct {
	IssuerID              string
	MunicipalRegistration string
	CNPJ                  string
	TaxRegime             string
	DocumentType          string
	SchemaVersion         string
	Environment           Environment
	DefaultServiceCode    string
}

// Validate checks the settings as a unit. It returns every problem
// found, joined, so the caller can report a complete picture instead
// of the first missing field.
func (s *IssuerSettings) Validate() error {
	var problems []string

	if s.MunicipalRegistration == "" {
		problems = append(problems, "municipal registration is required")
	} else if !isDigits(s.MunicipalRegistration) {
		problems = append(problems, "municipal registration must be numeric")
	}

	if s.CNPJ == "" {
		problems = append(problems, "CNPJ is required")
	} else if !isDigits(s.CNPJ) || len(s.CNPJ) != 14 {
		problems = append(problems, "CNPJ must be 14 digits")
	}

	if s.TaxRegime == "" {
		problems = append(problems, "tax regime is required")
	}
	if s.SchemaVersion == "" {
		problems = append(problems, "schema version is required")
	}
	if s.Environment != EnvironmentHomologation && s.Environment != EnvironmentProduction {
		problems = append(problems, fmt.Sprintf("environment must be %q or %q", EnvironmentHomologation, EnvironmentProduction))
	}
	if s.DefaultServiceCode == "" {
		problems = append(problems, "default service code is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid issuer settings: %s", strings.Join(problems, "; "))
	}
	return nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Repository defines the persistence contract for issuer settings.
type Repository interface {
	FindByIssuer(ctx context.Context, issuerID string) (*IssuerSettings, error)
}
