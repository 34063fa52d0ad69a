package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCommandTree(t *testing.T) {
	root := newRootCmd()

	for _, path := range [][]string{
		{"migrate"},
		{"catalog", "reload"},
		{"catalog", "describe"},
		{"vectors", "embed"},
		{"vectors", "health"},
		{"vectors", "clear"},
		{"tracks", "list"},
		{"students", "forget"},
		{"admin", "hash-key"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, strings.Join(path, " "))
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	reload, _, err := root.Find([]string{"catalog", "reload"})
	require.NoError(t, err)
	assert.NotNil(t, reload.Flags().Lookup("file"))
}

func TestHashKeyPrintsVerifiableHash(t *testing.T) {
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"admin", "hash-key", "a-long-operator-key"})

	require.NoError(t, root.Execute())
	hash := strings.TrimSpace(out.String())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("a-long-operator-key")))
}

func TestHashKeyRejectsShortKey(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"admin", "hash-key", "short"})
	assert.Error(t, root.Execute())
}

func TestCatalogSource(t *testing.T) {
	assert.Nil(t, catalogSource(""))
	assert.NotNil(t, catalogSource("courses.yaml"))
}
