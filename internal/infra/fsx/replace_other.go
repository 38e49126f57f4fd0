//go:build !unix

package fsx

func replaceRefused(error) (string, bool) { return "", false }
