package webhook

import (
	"crypto/ed25519"
	"encoding/hex"
)

// seedLength is the size of an Ed25519 signing seed.
const seedLength = ed25519.SeedSize

// challengeGenerator signs the platform's HTTP callback challenge with a
// key derived from the bot's shared secret.
type challengeGenerator struct {
	signingKey ed25519.PrivateKey
}

// newChallengeGenerator expands secret into a 32-byte Ed25519 seed by
// cyclic repetition and derives the signing key from it.
func newChallengeGenerator(secret string) *challengeGenerator {
	var seed [seedLength]byte
	fillRepeatingBytes(seed[:], []byte(secret))
	return &challengeGenerator{signingKey: ed25519.NewKeyFromSeed(seed[:])}
}

// respond signs plainMaterial and returns the lowercase hex signature.
func (g *challengeGenerator) respond(plainMaterial string) string {
	sig := ed25519.Sign(g.signingKey, []byte(plainMaterial))
	return hex.EncodeToString(sig)
}

// fillRepeatingBytes fills dst by repeating src cyclically, truncating src
// on the final chunk if it doesn't divide len(dst) evenly.
func fillRepeatingBytes(dst, src []byte) {
	for len(dst) > 0 {
		n := len(dst)
		if n > len(src) {
			n = len(src)
		}
		copy(dst[:n], src[:n])
		dst = dst[n:]
	}
}
