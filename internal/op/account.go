package op

import (
	"fmt"

	"github.com/yuanshang000/ds2api/internal/db"
	"github.com/yuanshang000/ds2api/internal/model"
	"github.com/yuanshang000/ds2api/internal/utils/cache"
	"github.com/yuanshang000/ds2api/internal/utils/log"
)

var tokenCache = cache.New[string, string](16)

// AccountTokenInit loads all persisted tokens into the cache.
func AccountTokenInit() error {
	var rows []model.AccountToken
	if err := db.GetDB().Find(&rows).Error; err != nil {
		return fmt.Errorf("failed to load account tokens: %w", err)
	}
	for _, row := range rows {
		if row.Token != "" {
			tokenCache.Set(row.Identifier, row.Token)
		}
	}
	log.Debugf("loaded %d persisted account tokens", len(rows))
	return nil
}

// AccountTokenGet returns the persisted token for an account identifier.
func AccountTokenGet(identifier string) (string, bool) {
	return tokenCache.Get(identifier)
}

// AccountTokenSave stores a freshly obtained token. An empty token clears the
// persisted entry (the token was marked invalid). Without an initialized
// database only the cache is updated.
func AccountTokenSave(identifier, token string) {
	gdb := db.GetDB()
	if token == "" {
		tokenCache.Del(identifier)
		if gdb == nil {
			return
		}
		if err := gdb.Delete(&model.AccountToken{}, "identifier = ?", identifier).Error; err != nil {
			log.Warnf("failed to delete account token for %s: %v", identifier, err)
		}
		return
	}
	tokenCache.Set(identifier, token)
	if gdb == nil {
		return
	}
	row := model.AccountToken{Identifier: identifier, Token: token}
	if err := gdb.Save(&row).Error; err != nil {
		log.Warnf("failed to persist account token for %s: %v", identifier, err)
	}
}
