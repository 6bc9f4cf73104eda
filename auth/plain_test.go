/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlainInitialResponse(t *testing.T) {
	p := NewPlain("ortuman", "s3cret")
	require.Equal(t, "PLAIN", p.Mechanism())

	initial, err := p.InitialResponse()
	require.Nil(t, err)
	require.Equal(t, []byte("\x00ortuman\x00s3cret"), initial)
}

func TestPlainCompletion(t *testing.T) {
	p := NewPlain("ortuman", "s3cret")
	require.False(t, p.Authenticated())

	require.Nil(t, p.ProcessSuccess(nil))
	require.True(t, p.Authenticated())

	p.Reset()
	require.False(t, p.Authenticated())
}

func TestPlainUnexpectedChallenge(t *testing.T) {
	p := NewPlain("ortuman", "s3cret")
	_, err := p.ProcessChallenge([]byte("challenge"))
	require.Equal(t, ErrSASLMalformedRequest, err)
}
