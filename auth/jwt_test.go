package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWT_SignVerify(t *testing.T) {
	j := New("secret")

	tok, err := j.Sign("alice", time.Minute)
	require.NoError(t, err)

	uid, err := j.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", uid)
}

func TestJWT_Rejects(t *testing.T) {
	j := New("secret")

	_, err := j.Sign("", time.Minute)
	assert.Error(t, err)

	expired, err := j.Sign("alice", -time.Minute)
	require.NoError(t, err)
	_, err = j.Verify(expired)
	assert.Error(t, err)

	foreign, err := New("other").Sign("alice", time.Minute)
	require.NoError(t, err)
	_, err = j.Verify(foreign)
	assert.Error(t, err)

	_, err = j.Verify("not-a-token")
	assert.Error(t, err)
}
