package model

import (
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
)

// FundIdentity is the reference triple a lookup starts from: the name the
// user typed, plus whatever registry identifiers are known for the fund.
type FundIdentity struct {
	Name         string `json:"name"`
	RegistryCode string `json:"amfi_code,omitempty"`
	ISIN         string `json:"isin,omitempty"`
	OfficialName string `json:"scheme_name,omitempty"`
}

// foldCaser performs Unicode case folding for cache keys. It is stateless
// per the x/text docs aside from internal buffers, so each call gets a copy.
var foldCaser = cases.Fold()

// Normalize trims all identity fields and verifies that at least one of
// {name, registry code} is present. Identity with neither cannot be looked
// up, cached, or rendered into a prompt.
func (f *FundIdentity) Normalize() error {
	f.Name = strings.TrimSpace(f.Name)
	f.RegistryCode = strings.TrimSpace(f.RegistryCode)
	f.ISIN = strings.TrimSpace(f.ISIN)
	f.OfficialName = strings.TrimSpace(f.OfficialName)

	if f.Name == "" && f.RegistryCode == "" {
		return eris.New("fund identity requires a name or a registry code")
	}
	return nil
}

// Key returns the cache key for this fund: the registry code when known
// (stable across renames), otherwise the case-folded display name.
func (f FundIdentity) Key() string {
	if f.RegistryCode != "" {
		return f.RegistryCode
	}
	c := foldCaser
	return c.String(strings.Join(strings.Fields(f.Name), " "))
}

// DisplayName returns the best available human-readable name.
func (f FundIdentity) DisplayName() string {
	if f.OfficialName != "" {
		return f.OfficialName
	}
	return f.Name
}
