package cache_test

import (
	"context"
	"fmt"

	"github.com/carnet-go/vehicle-command/pkg/account"
	"github.com/carnet-go/vehicle-command/pkg/cache"
	"github.com/carnet-go/vehicle-command/pkg/token"
)

func Example() {
	const cacheFilename = "my_tokens.json"
	const username = "user@example.com"

	acct, err := account.New(account.Options{})
	if err != nil {
		panic(err)
	}
	defer acct.Close()

	// Try to load cache from disk if it doesn't already exist
	var myCache *cache.TokenCache
	if myCache, err = cache.ImportFromFile(cacheFilename); err != nil {
		myCache = cache.New(5) // Create a cache that holds token sets for up to five accounts
	}

	// Persist every token replacement, including refreshes.
	acct.Session().OnTokenChange(func(set *token.Set) {
		myCache.Update(username, set)
		if err := myCache.ExportToFile(cacheFilename); err != nil {
			fmt.Printf("Error saving token cache: %s\n", err)
		}
	})

	if set, ok := myCache.Get(username); ok {
		err = acct.RestoreToken(set)
	} else {
		err = acct.Login(context.Background(), username, "password")
	}
	if err != nil {
		panic(err)
	}

	// Interact with vehicles
}
