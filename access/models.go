package access

// Role is the closed set of caller roles. It is carried explicitly
// through every call; nothing is inferred from actor string shapes.
type Role string

const (
	RoleClient     Role = "client"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

// AdminUsername is the reserved singleton staff account.
const AdminUsername = "admin"

// Identity is the role-tagged result of a successful authentication.
// Presentation layers use Role to decide what to show; this package
// never does.
type Identity struct {
	Username string
	Role     Role
	Name     string
}

// Actor attributes a mutation for audit purposes.
type Actor struct {
	Role     Role
	Username string
}

// ClientActor is the anonymous self-service caller.
var ClientActor = Actor{Role: RoleClient}

// String renders the audit actor attribution: "client" for
// self-service calls, the username for staff.
func (a Actor) String() string {
	if a.Role == RoleClient || a.Username == "" {
		return string(a.Role)
	}
	return a.Username
}

// Technician is a staff account managed by the admin. Password is
// stored as a bcrypt hash, never in clear.
type Technician struct {
	ID           int64
	Username     string
	PasswordHash string
	Name         string
	Email        *string
	Phone        *string
}

// LoginResult bundles the token and identity returned after a
// successful staff login.
type LoginResult struct {
	Token    string
	Identity Identity
}
