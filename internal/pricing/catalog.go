package pricing

import (
	"errors"
	"sort"

	"coins-catcher/internal/model"
)

// Pricing errors.
var (
	ErrInvalidRate     = errors.New("coin to PKR rate must be positive")
	ErrInvalidPackage  = errors.New("package amount and price must be positive")
	ErrPackageNotFound = errors.New("package not found")
)

// Catalog returns the package tiers for kind sorted by amount. A nil config
// or an unconfigured kind yields an empty list, which callers show as
// temporarily unavailable.
func Catalog(cfg *model.WalletConfig, kind model.RequestKind) []model.Package {
	if cfg == nil {
		return []model.Package{}
	}
	var src []model.Package
	switch kind {
	case model.RequestUC:
		src = cfg.UCPackages
	case model.RequestDiamond:
		src = cfg.DiamondPackages
	}
	out := make([]model.Package, len(src))
	copy(out, src)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount < out[j].Amount })
	return out
}

// FindPackage returns the tier of kind with the given amount.
func FindPackage(cfg *model.WalletConfig, kind model.RequestKind, amount int64) (model.Package, error) {
	for _, p := range Catalog(cfg, kind) {
		if p.Amount == amount {
			return p, nil
		}
	}
	return model.Package{}, ErrPackageNotFound
}
