package spdmcrypto

import "hash"

// bufferedHash adapts a Hasher — which only offers a whole-buffer Sum, not
// incremental Write — into the standard hash.Hash interface that
// transcript.Manager is built around, by buffering written bytes and
// hashing them in one shot when Sum is called.
type bufferedHash struct {
	h   Hasher
	buf []byte
}

func (b *bufferedHash) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *bufferedHash) Sum(in []byte) []byte { return append(in, b.h.Sum(b.buf)...) }
func (b *bufferedHash) Reset()               { b.buf = nil }
func (b *bufferedHash) Size() int            { return b.h.Size() }
func (b *bufferedHash) BlockSize() int       { return 64 }

// HashConstructor returns a func() hash.Hash backed by h, for callers
// (connection, session) that need to drive a transcript.Manager but only
// hold a Backend-sourced Hasher.
func HashConstructor(h Hasher) func() hash.Hash {
	return func() hash.Hash { return &bufferedHash{h: h} }
}
