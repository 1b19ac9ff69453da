package models

import (
	"encoding/json"
	"strings"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", Validationf("invalid role %q: must be user or admin", s)
}

type User struct {
	ID        string `bson:"_id" json:"id"`
	Email     string `bson:"email" json:"email"`
	Password  string `bson:"password" json:"-"`
	Role      Role   `bson:"role" json:"role"`
	CreatedAt int64  `bson:"createdAt" json:"createdAt"`
	UpdatedAt int64  `bson:"updatedAt" json:"updatedAt"`
}

// UserPatch is an administrative update of a user record.
type UserPatch struct {
	Email *string `json:"email"`
	Role  *string `json:"role"`
}

// Identity is the verified caller attached to every service call.
type Identity struct {
	ID   string `json:"userId"`
	Role Role   `json:"role"`
}

func (i Identity) IsZero() bool {
	return i.ID == ""
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// UserRef is a user reference resolved for display. A reference whose user no
// longer exists carries only the id and encodes as the bare id string.
type UserRef struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func NewUserRef(u *User) UserRef {
	return UserRef{ID: u.ID, Email: u.Email, Role: u.Role}
}

func (u UserRef) Resolved() bool {
	return u.Email != ""
}

func (u UserRef) MarshalJSON() ([]byte, error) {
	if !u.Resolved() {
		return json.Marshal(u.ID)
	}
	type plain UserRef
	return json.Marshal(plain(u))
}

func (u *UserRef) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*u = UserRef{ID: id}
		return nil
	}
	type plain UserRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*u = UserRef(p)
	return nil
}
