package util

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewID generates a short random identifier for runs and artifacts.
func NewID() string {
	id, err := gonanoid.Generate(idAlphabet, 16)
	if err != nil {
		// only fails when the alphabet is invalid
		panic(err)
	}
	return id
}
