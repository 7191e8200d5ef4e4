// Package fuzztests holds fuzz harnesses for the IR file decoder and the
// pass pipeline. Decoding arbitrary bytes must fail cleanly, and every
// optimized program must compute what its input computed.
package fuzztests
