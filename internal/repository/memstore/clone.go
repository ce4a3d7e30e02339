package memstore

import (
	"time"

	"coins-catcher/internal/model"
	"coins-catcher/internal/pkg/lifecycle"
)

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneAccount(a *model.Account) *model.Account {
	cp := *a
	cp.LastHourlyClaim = cloneTime(a.LastHourlyClaim)
	cp.LastFaucetClaim = cloneTime(a.LastFaucetClaim)
	cp.LastDailyClaim = cloneTime(a.LastDailyClaim)
	if a.ReferredBy != nil {
		ref := *a.ReferredBy
		cp.ReferredBy = &ref
	}
	return &cp
}

func cloneResolution(r *lifecycle.Resolution) *lifecycle.Resolution {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

func cloneWithdrawal(w *model.WithdrawalRequest) *model.WithdrawalRequest {
	cp := *w
	cp.Resolution = cloneResolution(w.Resolution)
	return &cp
}

func cloneFriend(f *model.FriendRequest) *model.FriendRequest {
	cp := *f
	cp.Resolution = cloneResolution(f.Resolution)
	return &cp
}

func cloneWallet(w *model.WalletConfig) *model.WalletConfig {
	if w == nil {
		return nil
	}
	cp := *w
	cp.UCPackages = append([]model.Package(nil), w.UCPackages...)
	cp.DiamondPackages = append([]model.Package(nil), w.DiamondPackages...)
	return &cp
}
