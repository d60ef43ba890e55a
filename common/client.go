package common

import "github.com/google/uuid"

// Client is an RBAC principal: a named token bound to a Group. On disk it
// is one TOML file per client, file stem == Name, content {token, group}.
type Client struct {
	Name  ClientName
	Token uuid.UUID
	Group Group
}

// ClientFile is the literal TOML-serializable shape of a client file on
// disk; Name is never stored in the file body, it is the file stem.
type ClientFile struct {
	Token string `toml:"token"`
	Group string `toml:"group"`
}

func (c Client) ToFile() ClientFile {
	return ClientFile{Token: c.Token.String(), Group: c.Group.String()}
}

// ValidateClientFrom validates a ClientInput's name and group
// independently, accumulating both failures if both are wrong.
func ValidateClientFrom(in ClientInput) (name ClientName, group Group, ce *CompositeError) {
	n, nameErr := ValidateClientNameFrom(in.Name)
	if nameErr != nil {
		ce = fieldErr(ce, "name", nameErr.Errors[0].Message)
	} else {
		name = n
	}
	g, err := ParseGroup(in.Group)
	if err != nil {
		ce = fieldErr(ce, "group", err.Error())
	} else {
		group = g
	}
	return
}

// DefaultAdminClientName is the bootstrap client materialized on first
// start if no admin client file exists.
const DefaultAdminClientName ClientName = "couicctl"
