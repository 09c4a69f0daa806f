package cstr

import (
	"bytes"
	"strings"
)

// ToString trims the string at the first null byte which is used in C to indicate the end of the string
func ToString(cstr string) string {
	if nbi := strings.IndexByte(cstr, 0x00); nbi != -1 {
		return cstr[:nbi]
	}
	return cstr
}

// BytesToString converts a null padded char array, like the fields of unix.Utsname, to a string
func BytesToString(b []byte) string {
	if nbi := bytes.IndexByte(b, 0x00); nbi != -1 {
		b = b[:nbi]
	}
	return string(b)
}
