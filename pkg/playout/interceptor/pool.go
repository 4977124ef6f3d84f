package interceptor

import (
	"sync"

	"github.com/pion/rtp"
)

// headerPool is a sync.Pool for reusing rtp.Header objects.
// Parsing a header with extensions is the hot allocation on the RTP read
// path; reuse keeps GC pressure down at high packet rates.
var headerPool = sync.Pool{
	New: func() any {
		return &rtp.Header{}
	},
}

// getHeader retrieves a Header from the pool.
func getHeader() *rtp.Header {
	return headerPool.Get().(*rtp.Header)
}

// putHeader returns a Header to the pool after clearing its slices.
// Unmarshal overwrites the scalar fields, but stale extensions from the
// previous packet must not survive into the next parse.
func putHeader(h *rtp.Header) {
	h.Extension = false
	h.ExtensionProfile = 0
	h.Extensions = h.Extensions[:0]
	h.CSRC = h.CSRC[:0]
	headerPool.Put(h)
}
