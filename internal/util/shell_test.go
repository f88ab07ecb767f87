package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShellQuote(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", "'simple'"},
		{"with space", "'with space'"},
		{"with'quote", "'with'\\''quote'"},
		{"", "''"},
		{"$variable", "'$variable'"},
		{"$(command)", "'$(command)'"},
		{"`backtick`", "'`backtick`'"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShellQuote(tt.input))
		})
	}
}

func TestShellEscape(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"ls", "ls"},
		{"-la", "-la"},
		{"/var/log/syslog", "/var/log/syslog"},
		{"key=value", "'key=value'"},
		{"", "''"},
		{"two words", "'two words'"},
		{"a;b", "'a;b'"},
		{"$HOME", "'$HOME'"},
		{"*.txt", "'*.txt'"},
		{"it's", "'it'\\''s'"},
		{"line\nbreak", "'line\nbreak'"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShellEscape(tt.input))
		})
	}
}

func TestJoinArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"bash"}, "bash"},
		{"plain argv", []string{"ls", "-la", "/tmp"}, "ls -la /tmp"},
		{"argument with spaces", []string{"echo", "hello world"}, "echo 'hello world'"},
		{"metacharacters stay literal", []string{"echo", "a && rm -rf /"}, "echo 'a && rm -rf /'"},
		{"empty argument preserved", []string{"printf", ""}, "printf ''"},
		{"leading assignment stays a command word", []string{"FOO=bar", "printenv", "FOO"}, "'FOO=bar' printenv FOO"},
		{"flag with value", []string{"go", "test", "-run=TestX"}, "go test '-run=TestX'"},
		{"no arguments", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, JoinArgs(tt.args))
		})
	}
}
