package console

import (
	"context"
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"

	streamctl "github.com/Paranoid-AF/streamctl"
	"github.com/Paranoid-AF/streamctl/catalog"
)

const defaultResponseTTL = 30 * time.Second

// pendingRequest is a sent command still waiting for its response.
type pendingRequest struct {
	Command catalog.Command
	Method  string
	ID      int
	SentAt  time.Time
}

// pending tracks sent requests by id until their response arrives or the
// entry expires. Sending the same command twice replaces the older entry,
// since both carry the same id. Expired entries are swept whenever the
// table is read.
type pending struct {
	cache *ttlcache.Cache[string, pendingRequest]
}

func newPending(ttl time.Duration) *pending {
	if ttl <= 0 {
		ttl = defaultResponseTTL
	}
	c := ttlcache.New[string, pendingRequest](
		ttlcache.WithTTL[string, pendingRequest](ttl),
		ttlcache.WithDisableTouchOnHit[string, pendingRequest](),
	)
	c.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, pendingRequest]) {
		if reason == ttlcache.EvictionReasonExpired {
			req := item.Value()
			slog.Debug("no response before expiry", "method", req.Method, "id", req.ID)
		}
	})
	return &pending{cache: c}
}

func (p *pending) track(t catalog.Template, at time.Time) {
	p.cache.Set(streamctl.RequestKey(t.ID), pendingRequest{
		Command: t.Command,
		Method:  t.Method,
		ID:      t.ID,
		SentAt:  at,
	}, ttlcache.DefaultTTL)
}

// resolve removes and returns the request answered by a response with key.
func (p *pending) resolve(key string) (pendingRequest, bool) {
	p.cache.DeleteExpired()
	item, ok := p.cache.GetAndDelete(key)
	if !ok || item == nil {
		return pendingRequest{}, false
	}
	return item.Value(), true
}

func (p *pending) len() int {
	p.cache.DeleteExpired()
	return p.cache.Len()
}

func (p *pending) close() {
	p.cache.DeleteAll()
}
