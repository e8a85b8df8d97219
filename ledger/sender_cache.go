package ledger

import (
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common/lru"

	"github.com/optiswap/optiswap/core/types"
	"github.com/optiswap/optiswap/crypto"
)

// defaultSenderCacheSize is the number of authenticated senders remembered.
const defaultSenderCacheSize = 4096

// SenderCacheStats holds hit/miss statistics of the sender cache.
type SenderCacheStats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// senderCache remembers the sender of signatures that already verified,
// keyed by keccak256(txhash || scheme || pubkey || sig). Only successful
// authentications are cached, so a bad signature is checked every time.
type senderCache struct {
	entries *lru.Cache[types.Hash, types.Address]
	hits    atomic.Uint64
	misses  atomic.Uint64
}

func newSenderCache(size int) *senderCache {
	if size <= 0 {
		size = defaultSenderCacheSize
	}
	return &senderCache{entries: lru.NewCache[types.Hash, types.Address](size)}
}

func senderCacheKey(stx *SignedTx) types.Hash {
	hash := stx.Tx.Hash()
	return crypto.Keccak256Hash(hash[:], []byte{byte(stx.Scheme)}, stx.PubKey, stx.Sig)
}

// sender returns the authenticated sender of stx.
func (c *senderCache) sender(stx *SignedTx) (types.Address, error) {
	key := senderCacheKey(stx)
	if addr, ok := c.entries.Get(key); ok {
		c.hits.Add(1)
		return addr, nil
	}
	c.misses.Add(1)
	addr, err := stx.Sender()
	if err != nil {
		return types.Address{}, err
	}
	c.entries.Add(key, addr)
	return addr, nil
}

func (c *senderCache) stats() SenderCacheStats {
	return SenderCacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.entries.Len(),
	}
}
