package pgstore

import "math/rand"

// roomCodeAlphabet excludes 0/O/1/I to avoid codes players could misread
// aloud or mistype.
const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func randomRoomCode() string {
	b := make([]byte, 4)
	for i := range b {
		b[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))]
	}
	return string(b)
}
