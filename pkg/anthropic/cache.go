package anthropic

import (
	"context"

	"github.com/rotisserie/eris"
)

// cacheTTL is the prompt-cache lifetime requested on system blocks. The
// extraction system prompt plus schema runs thousands of tokens, and an
// experiment batch reuses it across every document, so the long TTL pays
// for itself after the first hit.
const cacheTTL = "1h"

// BuildCachedSystemBlocks wraps the extraction system prompt in a single
// block carrying a cache breakpoint. Pair it with PrimerRequest: one
// sequential call writes the cache, then the batch items read it.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: cacheTTL,
			},
		},
	}
}

// PrimerRequest sends one small message to warm the prompt cache before a
// batch is submitted. The request should carry system blocks built with
// BuildCachedSystemBlocks; the response content is usually discarded.
func PrimerRequest(ctx context.Context, client Client, req MessageRequest) (*MessageResponse, error) {
	resp, err := client.CreateMessage(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: primer request")
	}
	return resp, nil
}
