package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccessRegistryBootstrap(t *testing.T) {
	acl := NewAccessRegistry(deployer)

	require.True(t, acl.HasRole(RoleAdmin, deployer))
	require.False(t, acl.HasRole(RoleAgent, deployer))
	require.False(t, acl.HasRole(RoleAdmin, user1))
}

func TestGrantAndRevokeRole(t *testing.T) {
	acl := NewAccessRegistry(deployer)

	require.NoError(t, acl.GrantRole(deployer, RoleAgent, agent))
	require.True(t, acl.HasRole(RoleAgent, agent))

	require.NoError(t, acl.RevokeRole(deployer, RoleAgent, agent))
	require.False(t, acl.HasRole(RoleAgent, agent))
}

func TestGrantRoleRequiresAdmin(t *testing.T) {
	acl := NewAccessRegistry(deployer)

	err := acl.GrantRole(user1, RoleAgent, user1)
	require.ErrorIs(t, err, ErrUnauthorizedAccount)
	require.False(t, acl.HasRole(RoleAgent, user1))

	err = acl.RevokeRole(user1, RoleAdmin, deployer)
	require.ErrorIs(t, err, ErrUnauthorizedAccount)
	require.True(t, acl.HasRole(RoleAdmin, deployer))
}

func TestRequireAgentError(t *testing.T) {
	acl := NewAccessRegistry(deployer)
	require.NoError(t, acl.GrantRole(deployer, RoleBridge, agent))

	// Holding a different role does not satisfy the agent check.
	require.ErrorIs(t, acl.requireAgent(agent), ErrUnauthorizedAgent)
	require.NoError(t, acl.requireAdmin(deployer))
}
