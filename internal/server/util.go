package server

import (
	"crypto/rand"
	"math/big"
)

const (
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	roomCodeLength   = 4
)

var roomCodeAlphabetSize = big.NewInt(int64(len(roomCodeAlphabet)))

func newRoomCode() string {
	buf := make([]byte, roomCodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, roomCodeAlphabetSize)
		if err != nil {
			return "AAAA"
		}
		buf[i] = roomCodeAlphabet[n.Int64()]
	}
	return string(buf)
}
