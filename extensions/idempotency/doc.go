// Package idempotency deduplicates mutating requests at the API boundary.
//
// # Overview
//
// Minting is already idempotent at the ledger level: a token is minted at
// most once. What the ledger cannot do is hand a retrying
// client the same response it got the first time, or stop two identical
// requests from racing through voucher verification together. A Guard does both.
//
// # Usage
//
// Basic usage with the default in-memory store:
//
//	guard := idempotency.New()
//	result, replayed, err := guard.Do(ctx, key, func(ctx context.Context) ([]byte, error) {
//	    receipt, err := l.Mint(ctx, voucher, recipient)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return json.Marshal(receipt)
//	})
//
// Keys always include the payload hash. A client-supplied key is bound to the
// first payload it was used with:
//
//	if err := guard.BindClientKey(ctx, scope, clientKey, body); err != nil {
//	    return err // ErrKeyReused
//	}
//	result, replayed, err := guard.Do(ctx, guard.Key(scope, clientKey, body), fn)
//
// Anything besides the payload that decides the outcome (for example the
// currently authorized signer) belongs in the scope.
//
// Shared across replicas with Redis:
//
//	client, err := idempotency.Connect(ctx, os.Getenv("REDIS_URL"))
//	guard := idempotency.New(
//	    idempotency.WithStore(idempotency.NewRedisStore(client, 10*time.Minute)),
//	)
//
// # How It Works
//
//  1. The store atomically checks for a cached result or an in-flight request
//  2. If cached: the result is replayed without running the operation
//  3. If in-flight: the caller waits for the other request, then replays its result
//  4. Otherwise: the operation runs and a successful result is cached for the TTL
//
// Failed operations are NOT cached, so a corrected retry is never masked by an
// earlier error.
package idempotency
