package ports_test

import (
	"testing"

	"github.com/brightclass/identity-go/internal/mocks"
	identitymocks "github.com/brightclass/identity-go/internal/mocks/identity"
	"github.com/brightclass/identity-go/internal/ports"
)

// This test only verifies that our test doubles conform to the ports at
// compile time.
func TestDoublesImplementPorts(t *testing.T) {
	t.Helper()

	var _ ports.IdentityProvider = (*identitymocks.MockProvider)(nil)
	var _ ports.StateStore = (*identitymocks.MemoryStateStore)(nil)
	var _ ports.Navigator = (*identitymocks.RecorderNavigator)(nil)
	var _ ports.RoleExtractor = (*identitymocks.MapRoleExtractor)(nil)
	var _ ports.ProfileRepository = (*identitymocks.MemoryProfileRepo)(nil)
	var _ ports.ProfileRepository = (*mocks.MockProfileRepository)(nil)
	var _ ports.RoleExtractor = (*mocks.MockRoleExtractor)(nil)
}
