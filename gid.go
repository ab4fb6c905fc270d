package osal

import (
	"bytes"
	"runtime"
)

var goroutinePrefix = []byte("goroutine ")

// goid returns the id of the calling goroutine, parsed from the
// runtime.Stack header ("goroutine 123 [running]:"). Task identity and
// recursive-mutex ownership key off this value, which also covers plain
// goroutines that were never registered as tasks.
func goid() uint64 {
	var buf [32]byte
	n := runtime.Stack(buf[:], false)
	s := bytes.TrimPrefix(buf[:n], goroutinePrefix)

	var id uint64
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
