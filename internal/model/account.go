package model

import "strings"

// Account is a mutable upstream credential held by the pool. The token field
// is updated in place on login and cleared when marked invalid.
type Account struct {
	Email    string
	Mobile   string
	Password string
	Token    string
}

// Identifier returns the account's unique id: email wins over mobile.
func (a *Account) Identifier() string {
	if id := strings.TrimSpace(a.Email); id != "" {
		return id
	}
	return strings.TrimSpace(a.Mobile)
}

// HasToken reports whether a non-empty bearer token is cached.
func (a *Account) HasToken() bool {
	return strings.TrimSpace(a.Token) != ""
}

// PoolStatus is a point-in-time snapshot of the account pool.
type PoolStatus struct {
	Available         int      `json:"available"`
	InUse             int      `json:"in_use"`
	Total             int      `json:"total"`
	AvailableAccounts []string `json:"available_accounts"`
	InUseAccounts     []string `json:"in_use_accounts"`
}

// AccountToken persists the last known upstream token per account so that a
// restart does not force a re-login of every configured account.
type AccountToken struct {
	Identifier string `gorm:"primaryKey;size:128"`
	Token      string `gorm:"size:2048"`
	UpdatedAt  int64  `gorm:"autoUpdateTime"`
}

func (AccountToken) TableName() string {
	return "account_tokens"
}
