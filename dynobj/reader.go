package dynobj

import "github.com/wippyai/script-heap/pool"

// Managers is the set of managers of one runtime. It resolves save data
// type tags for pool.ReadFromDisk.
type Managers struct {
	Arrays     *Arrays
	Strings    *Strings
	Users      *UserObjects
	Characters *Characters // nil when the engine has no characters
}

// NewManagers creates the script object managers for env.
func NewManagers(env *Env) *Managers {
	return &Managers{
		Arrays:  NewArrays(env),
		Strings: NewStrings(env),
		Users:   NewUserObjects(env),
	}
}

func (m *Managers) ManagerFor(typeName string) (pool.Manager, bool) {
	switch typeName {
	case ArrayTypeName:
		return m.Arrays, true
	case StringTypeName:
		return m.Strings, true
	case UserObjectTypeName:
		return m.Users, true
	case CharacterTypeName:
		if m.Characters != nil {
			return m.Characters, true
		}
	}
	return nil, false
}
