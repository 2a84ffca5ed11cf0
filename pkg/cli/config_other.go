//go:build !linux

package cli

const keyringDirectory = "~/.carnet_keys"
