package crypto

import "encoding/binary"

// computeTag computes the CBC-MAC authentication tag.
// This follows NIST 800-38C Section 6.1 and RFC 3610 Section 2.2.
func (c *AESCCM) computeTag(nonce, plaintext, aad []byte) []byte {
	// Build B_0 (first block)
	// Flags = Reserved(1) || Adata(1) || M'(3) || L'(3)
	// M' = (tagSize - 2) / 2
	// L' = L - 1
	var b0 [aesBlockSize]byte
	flags := byte(0)
	if len(aad) > 0 {
		flags |= 1 << 6 // Adata flag
	}
	flags |= byte((c.tagSize-2)/2) << 3 // M' in bits 3-5
	flags |= byte(c.lenSize - 1)        // L' in bits 0-2

	b0[0] = flags
	nonceSize := c.NonceSize()
	copy(b0[1:1+nonceSize], nonce)
	// Last L bytes contain the message length (big-endian)
	c.putLength(b0[1+nonceSize:], len(plaintext))

	// Initialize CBC-MAC with B_0
	mac := make([]byte, aesBlockSize)
	c.block.Encrypt(mac, b0[:])

	// Process AAD if present
	if len(aad) > 0 {
		// AAD length encoding
		// For 0 < l(a) < 2^16 - 2^8: encode as 2 bytes
		// For 2^16 - 2^8 <= l(a) < 2^32: encode as 0xFFFE || 4 bytes
		// For 2^32 <= l(a) < 2^64: encode as 0xFFFF || 8 bytes
		var aadBlock [aesBlockSize]byte
		aadLen := len(aad)
		var headerLen int

		if aadLen < (1<<16)-(1<<8) {
			binary.BigEndian.PutUint16(aadBlock[0:2], uint16(aadLen))
			headerLen = 2
		} else if aadLen < (1 << 32) {
			aadBlock[0] = 0xFF
			aadBlock[1] = 0xFE
			binary.BigEndian.PutUint32(aadBlock[2:6], uint32(aadLen))
			headerLen = 6
		} else {
			aadBlock[0] = 0xFF
			aadBlock[1] = 0xFF
			binary.BigEndian.PutUint64(aadBlock[2:10], uint64(aadLen))
			headerLen = 10
		}

		// Copy as much AAD as fits in the first block
		firstBlockAAD := aesBlockSize - headerLen
		if firstBlockAAD > len(aad) {
			firstBlockAAD = len(aad)
		}
		copy(aadBlock[headerLen:], aad[:firstBlockAAD])

		// XOR and encrypt
		for i := 0; i < aesBlockSize; i++ {
			mac[i] ^= aadBlock[i]
		}
		c.block.Encrypt(mac, mac)

		// Process remaining AAD
		remaining := aad[firstBlockAAD:]
		for len(remaining) > 0 {
			var block [aesBlockSize]byte
			n := copy(block[:], remaining)
			remaining = remaining[n:]

			for i := 0; i < aesBlockSize; i++ {
				mac[i] ^= block[i]
			}
			c.block.Encrypt(mac, mac)
		}
	}

	// Process plaintext
	remaining := plaintext
	for len(remaining) > 0 {
		var block [aesBlockSize]byte
		n := copy(block[:], remaining)
		remaining = remaining[n:]

		for i := 0; i < aesBlockSize; i++ {
			mac[i] ^= block[i]
		}
		c.block.Encrypt(mac, mac)
	}

	return mac[:c.tagSize]
}

// generateS0 generates the S_0 keystream block for tag encryption.
// S_0 = E(K, A_0) where A_0 is the first counter block with counter = 0.
func (c *AESCCM) generateS0(nonce []byte) []byte {
	// A_0 format:
	// Flags = Reserved(2) || 0(3) || L'(3)
	// L' = L - 1
	var a0 [aesBlockSize]byte
	a0[0] = byte(c.lenSize - 1) // L' in bits 0-2, other bits are 0
	nonceSize := c.NonceSize()
	copy(a0[1:1+nonceSize], nonce)
	// Counter = 0 (last L bytes are zero)

	s0 := make([]byte, aesBlockSize)
	c.block.Encrypt(s0, a0[:])
	return s0
}

// ctrEncrypt encrypts/decrypts data using CTR mode starting from counter 1.
// This uses the counter generation function from NIST 800-38C Appendix A.3.
func (c *AESCCM) ctrEncrypt(nonce []byte, dst, src []byte) {
	// Build the initial counter block A_1
	var ctr [aesBlockSize]byte
	ctr[0] = byte(c.lenSize - 1) // L' in bits 0-2
	nonceSize := c.NonceSize()
	copy(ctr[1:1+nonceSize], nonce)
	// Start with counter = 1 in the last L bytes
	ctr[aesBlockSize-1] = 1

	var keystream [aesBlockSize]byte
	for i := 0; i < len(src); i += aesBlockSize {
		c.block.Encrypt(keystream[:], ctr[:])

		// XOR plaintext with keystream
		end := i + aesBlockSize
		if end > len(src) {
			end = len(src)
		}
		for j := i; j < end; j++ {
			dst[j] = src[j] ^ keystream[j-i]
		}

		// Increment counter (big-endian, last L bytes)
		incrementCounter(ctr[aesBlockSize-c.lenSize:])
	}
}

// putLength encodes the message length into dst as a big-endian value.
// dst must have at least c.lenSize bytes.
func (c *AESCCM) putLength(dst []byte, length int) {
	for i := c.lenSize - 1; i >= 0; i-- {
		dst[i] = byte(length)
		length >>= 8
	}
}

// incrementCounter increments a big-endian counter.
func incrementCounter(ctr []byte) {
	for i := len(ctr) - 1; i >= 0; i-- {
		ctr[i]++
		if ctr[i] != 0 {
			break
		}
	}
}
