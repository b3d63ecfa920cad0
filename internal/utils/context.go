// Package utils provides shared utility functions and constants
package utils

// ContextKeyPrincipal is the key used to store the authenticated principal
// in the echo context
const ContextKeyPrincipal = "principal"
