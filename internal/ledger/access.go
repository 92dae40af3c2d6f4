package ledger

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Role is a named capability checked at the top of every mutating operation.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleAgent  Role = "AGENT"
	RoleBridge Role = "BRIDGE"
)

// AccessRegistry is the shared (role, principal) relation. The deploying
// principal receives ADMIN; everything else is granted explicitly.
type AccessRegistry struct {
	mu      sync.RWMutex
	members map[Role]map[common.Address]bool
}

// NewAccessRegistry creates the role relation and bootstraps the deployer
// as ADMIN.
func NewAccessRegistry(deployer common.Address) *AccessRegistry {
	r := &AccessRegistry{
		members: make(map[Role]map[common.Address]bool),
	}
	r.members[RoleAdmin] = map[common.Address]bool{deployer: true}
	return r
}

// HasRole reports whether principal holds role.
func (r *AccessRegistry) HasRole(role Role, principal common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.members[role][principal]
}

// GrantRole binds principal to role. Caller must hold ADMIN.
func (r *AccessRegistry) GrantRole(caller common.Address, role Role, principal common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.members[RoleAdmin][caller] {
		return ErrUnauthorizedAccount
	}
	if r.members[role] == nil {
		r.members[role] = make(map[common.Address]bool)
	}
	r.members[role][principal] = true
	return nil
}

// RevokeRole removes principal from role. Caller must hold ADMIN.
func (r *AccessRegistry) RevokeRole(caller common.Address, role Role, principal common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.members[RoleAdmin][caller] {
		return ErrUnauthorizedAccount
	}
	delete(r.members[role], principal)
	return nil
}

// requireAdmin fails with the generic access-control error.
func (r *AccessRegistry) requireAdmin(caller common.Address) error {
	if !r.HasRole(RoleAdmin, caller) {
		return ErrUnauthorizedAccount
	}
	return nil
}

// requireAgent fails with the agent-specific error the automation
// surfaces expect.
func (r *AccessRegistry) requireAgent(caller common.Address) error {
	if !r.HasRole(RoleAgent, caller) {
		return ErrUnauthorizedAgent
	}
	return nil
}
