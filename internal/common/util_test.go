package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWipeBytes_ZerosBuffer(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	WipeBytes(buf)
	assert.Equal(t, make([]byte, 5), buf)
}

func TestWipeBytes_NilIsNoop(t *testing.T) {
	assert.NotPanics(t, func() { WipeBytes(nil) })
}
