package mw

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"dob-backend/internal/model"
)

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

type bodyCacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyCacheWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// OfficerCache caches GET responses per officer. Entries are immutable once
// written, so a cached list stays correct until the officer's next write;
// Invalidate is called on every entry creation for that officer.
type OfficerCache struct {
	store *cache.Cache
	ttl   time.Duration
}

// NewOfficerCache creates a response cache with the given TTL.
func NewOfficerCache(ttl time.Duration) *OfficerCache {
	return &OfficerCache{
		store: cache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

// Publish invalidates the owning officer's cached reads for a newly stored
// entry. It satisfies the entry factory's notifier contract, so auto-logged
// entries expire cached lists the same way manual submissions do.
func (oc *OfficerCache) Publish(entry model.Entry) {
	oc.Invalidate(entry.CPOID)
}

// Invalidate drops every cached response belonging to the officer.
func (oc *OfficerCache) Invalidate(cpoID string) {
	prefix := cpoID + "|"
	for key := range oc.store.Items() {
		if strings.HasPrefix(key, prefix) {
			oc.store.Delete(key)
		}
	}
}

// Middleware serves cached GET responses keyed by officer and request URI.
func (oc *OfficerCache) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := OfficerID(c) + "|" + c.Request.RequestURI
		if resp, found := oc.store.Get(key); found {
			cached := resp.(cachedResponse)
			for k, v := range cached.headers {
				c.Writer.Header()[k] = v
			}
			c.Writer.WriteHeader(cached.status)
			c.Writer.Write(cached.body)
			c.Abort()
			return
		}

		blw := &bodyCacheWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		// Only cache successful responses
		if blw.Status() >= 200 && blw.Status() < 300 {
			oc.store.Set(key, cachedResponse{
				status:  blw.Status(),
				headers: blw.Header().Clone(),
				body:    blw.body.Bytes(),
			}, oc.ttl)
		}
	}
}
