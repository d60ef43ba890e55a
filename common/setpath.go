package common

// SetPath identifies one set file under a policy's set directory, the
// /v1/sets/{policy}/{name} path parameters.
type SetPath struct {
	Policy Policy
	Name   SetName
}

// ValidateSetPathFrom validates policy and name independently,
// accumulating both errors if both are wrong.
func ValidateSetPathFrom(in SetPathInput) (SetPath, *CompositeError) {
	var ce *CompositeError
	var out SetPath
	p, err := ParsePolicy(in.Policy)
	if err != nil {
		ce = fieldErr(ce, "policy", err.Error())
	} else {
		out.Policy = p
	}
	n, nameErr := ValidateSetNameFrom(in.Name)
	if nameErr != nil {
		ce = fieldErr(ce, "name", nameErr.Errors[0].Message)
	} else {
		out.Name = n
	}
	if ce != nil {
		return SetPath{}, ce
	}
	return out, nil
}
