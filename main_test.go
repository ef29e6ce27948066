package main

import (
	"testing"

	"github.com/reportpull/sfauth/cmd"
)

func TestVersionDefault(t *testing.T) {
	if version != "dev" {
		t.Errorf("Expected default version to be 'dev', got %s", version)
	}
}

func TestVersionInjection(t *testing.T) {
	originalVersion := version
	defer func() {
		version = originalVersion
		cmd.SetVersion(originalVersion)
	}()

	version = "1.2.3"
	cmd.SetVersion(version)
	if cmd.GetVersion() != "1.2.3" {
		t.Errorf("Expected cmd version 1.2.3, got %s", cmd.GetVersion())
	}
}
