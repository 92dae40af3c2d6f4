package ledger

import (
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	deployer = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	agent    = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	user1    = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	user2    = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	pyusd    = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	protocol = common.HexToAddress("0x1234567890123456789012345678901234567890")
)

const nativeChainID = 31337

// fakeClock drives cooldown and staleness windows deterministically.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// recordingSink captures emitted events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func (s *recordingSink) ofType(eventType string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, evt := range s.events {
		if evt.EventType() == eventType {
			out = append(out, evt)
		}
	}
	return out
}

func units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000))
}

// requireAmount compares big.Int values by Cmp; reflect-based equality
// trips over nil-vs-empty word slices for zero.
func requireAmount(t *testing.T, want, got *big.Int, msgAndArgs ...interface{}) {
	t.Helper()
	require.NotNil(t, got, msgAndArgs...)
	require.Zerof(t, want.Cmp(got), "want %s, got %s", want.String(), got.String())
}

func newTestCore(t *testing.T) (*Core, *fakeClock, *recordingSink) {
	t.Helper()
	clock := newFakeClock()
	sink := &recordingSink{}
	core := New(DefaultConfig(deployer, pyusd, nativeChainID), nil, sink)
	core.SetNowFunc(clock.Now)

	require.NoError(t, core.Access.GrantRole(deployer, RoleAgent, agent))
	require.NoError(t, core.Tokens.Mint(pyusd, user1, units(1_000_000)))
	require.NoError(t, core.Tokens.Mint(pyusd, user2, units(1_000_000)))
	return core, clock, sink
}
