package core

// itoa converts an integer to a string without the fmt package
func itoa(n int) string {
	if n < 0 {
		return "-" + utoa(uint32(-n))
	}
	return utoa(uint32(n))
}

// utoa converts an unsigned integer to a string
func utoa(n uint32) string {
	var buf [10]byte
	pos := len(buf)
	for {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return string(buf[pos:])
}

// xtoa formats n as 0x-prefixed hex, for pin masks in log lines
func xtoa(n uint32) string {
	const digits = "0123456789abcdef"
	var buf [10]byte
	pos := len(buf)
	for {
		pos--
		buf[pos] = digits[n&0xF]
		n >>= 4
		if n == 0 {
			break
		}
	}
	pos -= 2
	buf[pos], buf[pos+1] = '0', 'x'
	return string(buf[pos:])
}
