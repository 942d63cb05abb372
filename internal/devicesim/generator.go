package devicesim

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/okian/naja/internal/domain/model"
	"github.com/okian/naja/internal/domain/protocol"
)

// Playtime generation bounds in milliseconds.
const (
	minPlaytimeMS   = 5_000
	playtimeRangeMS = 175_000
	randomDivisor   = 1_000_000
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomDivisor))
	return float64(n.Int64()) / float64(randomDivisor)
}

// generateFrame produces one wire frame for a randomized run. Timestamps
// advance with the session clock so no two frames share a playedAt value.
func generateFrame(at time.Time, failureRate float64) string {
	playtime := time.Duration(minPlaytimeMS+int64(getRandomFloat()*playtimeRangeMS)) * time.Millisecond
	rec := model.Record{
		PlayedAt: at.Truncate(time.Second),
		Playtime: playtime,
		Success:  getRandomFloat() >= failureRate,
	}
	return protocol.Encode(rec)
}
