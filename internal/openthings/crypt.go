package openthings

const (
	cryptPoly  = 0xF5F5
	cryptSalt  = 0x5A
	crc16Poly  = 0x1021
	cryptSteps = 5
)

// cipher is the OpenThings LFSR stream cipher. Encrypt and decrypt are the
// same operation.
type cipher struct {
	ran uint16
}

func newCipher(pid uint8, pip uint16) *cipher {
	return &cipher{ran: uint16(pid)<<8 ^ pip}
}

func (c *cipher) apply(b byte) byte {
	for range cryptSteps {
		if c.ran&0x01 != 0 {
			c.ran = c.ran>>1 ^ cryptPoly
		} else {
			c.ran >>= 1
		}
	}
	return byte(c.ran) ^ b ^ cryptSalt
}

func (c *cipher) applyAll(buf []byte) {
	for i := range buf {
		buf[i] = c.apply(buf[i])
	}
}

func crc16(data []byte) uint16 {
	var rem uint16
	for _, b := range data {
		rem ^= uint16(b) << 8
		for range 8 {
			if rem&0x8000 != 0 {
				rem = rem<<1 ^ crc16Poly
			} else {
				rem <<= 1
			}
		}
	}
	return rem
}
