package rbac

import (
	"fmt"
	"strings"

	"github.com/audt-staking/backend/internal/events"
	"github.com/audt-staking/backend/internal/models"
	"github.com/audt-staking/backend/internal/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Role names
const (
	RoleDefaultAdmin = "DEFAULT_ADMIN_ROLE"
	RoleMinter       = "MINTER_ROLE"
	RoleController   = "CONTROLLER_ROLE"
)

// Role identifiers are keccak256 of the role name; the default admin role is
// the zero hash.
var (
	DefaultAdminRole = common.Hash{}
	MinterRole       = crypto.Keccak256Hash([]byte(RoleMinter))
	ControllerRole   = crypto.Keccak256Hash([]byte(RoleController))
)

var roleNames = map[common.Hash]string{
	DefaultAdminRole: RoleDefaultAdmin,
	MinterRole:       RoleMinter,
	ControllerRole:   RoleController,
}

// ParseRole accepts a role name (MINTER_ROLE) or its 0x-prefixed hash.
func ParseRole(s string) (common.Hash, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for h, n := range roleNames {
		if n == name {
			return h, nil
		}
	}
	if strings.HasPrefix(s, "0x") && len(s) == 66 {
		return common.HexToHash(s), nil
	}
	return common.Hash{}, fmt.Errorf("unknown role %q", s)
}

// RoleName returns the human readable role name, or its hex form.
func RoleName(role common.Hash) string {
	if n, ok := roleNames[role]; ok {
		return n
	}
	return role.Hex()
}

// AccessControl is the role set of a single component. Each component keeps
// its memberships under its own state namespace.
type AccessControl struct {
	st    *state.Store
	ns    string
	owner common.Address
	emit  events.Emitter
}

func New(st *state.Store, ns string, owner common.Address, emit events.Emitter) *AccessControl {
	return &AccessControl{st: st, ns: ns, owner: owner, emit: emit}
}

// Bootstrap grants the super-admin role at construction time.
func (a *AccessControl) Bootstrap(admin common.Address) {
	a.set(DefaultAdminRole, admin, true)
}

func (a *AccessControl) HasRole(role common.Hash, id common.Address) bool {
	return a.st.Flag(a.key(role, id))
}

// Require is the guard clause of privileged operations.
func (a *AccessControl) Require(role common.Hash, id common.Address) error {
	if !a.HasRole(role, id) {
		return fmt.Errorf("%s missing %s on %s: %w", id.Hex(), RoleName(role), a.ns, models.ErrUnauthorized)
	}
	return nil
}

// GrantRole lets an existing holder of role, or a default admin, add id to it.
func (a *AccessControl) GrantRole(caller common.Address, role common.Hash, id common.Address) error {
	if !a.HasRole(role, caller) && !a.HasRole(DefaultAdminRole, caller) {
		return fmt.Errorf("grant %s: %w", RoleName(role), models.ErrUnauthorized)
	}
	if a.HasRole(role, id) {
		return nil
	}
	a.set(role, id, true)
	a.emit(events.Event{
		Type:    events.EventRoleGranted,
		Payload: a.payload(role, id, caller),
	})
	return nil
}

func (a *AccessControl) RevokeRole(caller common.Address, role common.Hash, id common.Address) error {
	if err := a.Require(DefaultAdminRole, caller); err != nil {
		return err
	}
	if !a.HasRole(role, id) {
		return nil
	}
	a.set(role, id, false)
	a.emit(events.Event{
		Type:    events.EventRoleRevoked,
		Payload: a.payload(role, id, caller),
	})
	return nil
}

// Members lists the holders of role in address order.
func (a *AccessControl) Members(role common.Hash) []common.Address {
	prefix := state.Key(a.ns, "role", role.Hex(), "")
	keys := a.st.Keys(prefix)
	out := make([]common.Address, 0, len(keys))
	for _, k := range keys {
		out = append(out, common.HexToAddress(strings.TrimPrefix(k, prefix)))
	}
	return out
}

func (a *AccessControl) set(role common.Hash, id common.Address, on bool) {
	a.st.SetFlag(a.key(role, id), on)
}

func (a *AccessControl) key(role common.Hash, id common.Address) string {
	return state.Key(a.ns, "role", role.Hex(), state.AddrPart(id))
}

func (a *AccessControl) payload(role common.Hash, id, caller common.Address) map[string]any {
	return map[string]any{
		"contract": a.owner.Hex(),
		"role":     RoleName(role),
		"account":  id.Hex(),
		"sender":   caller.Hex(),
	}
}
