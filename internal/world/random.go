package world

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"

	"locked-study/server/internal/state"
)

const DefaultClockTime = "3:15"

// ProcessSeed is the root seed used when none is configured. It is drawn
// once per process, so codes cannot be derived from the room id alone.
var ProcessSeed = sync.OnceValue(func() string {
	return uuid.NewString()
})

func DeterministicSeedValue(rootSeed, label string) int64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(rootSeed))
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

func NewDeterministicRNG(rootSeed, label string) *rand.Rand {
	return rand.New(rand.NewSource(DeterministicSeedValue(rootSeed, label)))
}

// GenerateSecrets derives a room's lock and safe codes from the seed and the
// room id. An empty seed falls back to ProcessSeed. Non-empty fields of
// override win over generated values.
func GenerateSecrets(rootSeed, roomID string, override state.Secrets) state.Secrets {
	if strings.TrimSpace(rootSeed) == "" {
		rootSeed = ProcessSeed()
	}
	rng := NewDeterministicRNG(rootSeed, "secrets/"+roomID)
	secrets := state.Secrets{
		LockCode:  fmt.Sprintf("%04d", 1000+rng.Intn(9000)),
		SafeCode:  fmt.Sprintf("%d%d%d", 1+rng.Intn(9), 1+rng.Intn(9), 1+rng.Intn(9)),
		ClockTime: DefaultClockTime,
	}
	if override.LockCode != "" {
		secrets.LockCode = override.LockCode
	}
	if override.SafeCode != "" {
		secrets.SafeCode = override.SafeCode
	}
	if override.ClockTime != "" {
		secrets.ClockTime = override.ClockTime
	}
	return secrets
}
