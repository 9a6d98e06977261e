// Package util holds small helpers shared across aitify packages.
package util

import "sync"

// DefaultBufferSize matches the chunk size the log followers read appended
// content with; every poll cycle borrows one of these.
const DefaultBufferSize = 4096

var bufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, DefaultBufferSize)
		return &buf
	},
}

// GetBuffer borrows a read buffer from the pool. Pair with PutBuffer.
func GetBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

// PutBuffer returns a buffer to the pool. Resized or foreign buffers are
// dropped rather than pooled.
func PutBuffer(buf *[]byte) {
	if buf == nil || len(*buf) != DefaultBufferSize {
		return
	}
	bufferPool.Put(buf)
}
