package model

import "strings"

type (
	// Assertion is an opaque identity token handed out by an assertion provider.
	Assertion string

	LoginRequest struct {
		Assertion Assertion `json:"assertion"`
	}
)

// Present reports whether the provider actually produced an assertion.
func (a Assertion) Present() bool {
	return strings.TrimSpace(string(a)) != ""
}

func (a Assertion) String() string {
	return string(a)
}
