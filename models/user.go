package models

import (
	"fmt"
	"strings"
)

// reservedKeys are never copied from a request body onto an account
var reservedKeys = map[string]bool{
	"_id":       true,
	"id":        true,
	"role":      true,
	"token":     true,
	"createdAt": true,
	"updatedAt": true,
}

// AccountFields is the decoded body of POST /signup, POST /signin and PUT /update.
// Email and Password are nil when absent from the body.
type AccountFields struct {
	Email    *string
	Password *string
	Profile  Profile
}

// ParseAccountFields splits a JSON object into credentials and pass-through
// profile fields. Reserved keys are dropped; known profile keys must be strings
// and extra keys may not start with '$' or contain '.'.
func ParseAccountFields(body map[string]interface{}) (AccountFields, error) {
	var fields AccountFields
	for key, raw := range body {
		if reservedKeys[key] {
			continue
		}
		switch key {
		case "email", "password", "firstName", "lastName", "image", "country":
			if raw == nil {
				continue
			}
			value, ok := raw.(string)
			if !ok {
				return AccountFields{}, fmt.Errorf("%s must be a string", key)
			}
			switch key {
			case "email":
				fields.Email = &value
			case "password":
				fields.Password = &value
			case "firstName":
				fields.Profile.FirstName = &value
			case "lastName":
				fields.Profile.LastName = &value
			case "image":
				fields.Profile.Image = &value
			case "country":
				fields.Profile.Country = &value
			}
		default:
			if strings.HasPrefix(key, "$") || strings.Contains(key, ".") {
				return AccountFields{}, fmt.Errorf("invalid field name %q", key)
			}
			if fields.Profile.Extra == nil {
				fields.Profile.Extra = make(map[string]interface{})
			}
			fields.Profile.Extra[key] = raw
		}
	}
	return fields, nil
}
