// SPDX-License-Identifier: MIT

// Package freestuff provides a typed client for the FreeStuff API
// (https://freestuffbot.xyz), which announces free-to-keep games and other
// promotions across storefronts.
//
// An API key is required; one can be obtained via https://docs.freestuffbot.xyz.
//
//	client, err := freestuff.New(os.Getenv("FSA_API"))
//	if err != nil {
//		// handle error
//	}
//	ids, err := client.GameList(ctx, freestuff.CategoryFree)
//	if err != nil {
//		// handle error
//	}
//	details, err := client.GameDetails(ctx, ids[:min(len(ids), freestuff.MaxDetailsPerRequest)])
//
// All calls take a context and return sentinel-wrapped errors, so callers
// can branch with errors.Is (for example on ErrRatelimited) while still
// getting operation, status and body context from the full error string.
package freestuff
