/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package auth

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const digestChallenge = `realm="jackal.im",nonce="OA6MG9tEQGm2hh",qop="auth",charset=utf-8,algorithm=md5-sess`

func TestDigestMD5Respond(t *testing.T) {
	d := NewDigestMD5("ortuman", "s3cret", "jackal.im")
	require.Equal(t, "DIGEST-MD5", d.Mechanism())

	initial, err := d.InitialResponse()
	require.Nil(t, err)
	require.Nil(t, initial) // server goes first

	response, err := d.ProcessChallenge([]byte(digestChallenge))
	require.Nil(t, err)

	params := parseDigestParameters(string(response))
	require.Equal(t, "ortuman", params["username"])
	require.Equal(t, "jackal.im", params["realm"])
	require.Equal(t, "OA6MG9tEQGm2hh", params["nonce"])
	require.Equal(t, "00000001", params["nc"])
	require.Equal(t, "auth", params["qop"])
	require.Equal(t, "xmpp/jackal.im", params["digest-uri"])
	require.Equal(t, 32, len(params["response"]))
}

func TestDigestMD5RspAuth(t *testing.T) {
	d := NewDigestMD5("ortuman", "s3cret", "jackal.im")

	response, err := d.ProcessChallenge([]byte(digestChallenge))
	require.Nil(t, err)

	// recompute the expected rspauth from the emitted parameters
	params := parseDigestParameters(string(response))
	a1Hash := md5.Sum([]byte("ortuman:jackal.im:s3cret"))
	a1 := append(a1Hash[:], []byte(":OA6MG9tEQGm2hh:"+params["cnonce"])...)
	ha1Sum := md5.Sum(a1)
	ha1 := hex.EncodeToString(ha1Sum[:])
	ha2Sum := md5.Sum([]byte(":xmpp/jackal.im"))
	ha2 := hex.EncodeToString(ha2Sum[:])
	kd := strings.Join([]string{ha1, "OA6MG9tEQGm2hh", "00000001", params["cnonce"], "auth", ha2}, ":")
	rspSum := md5.Sum([]byte(kd))
	rspauth := hex.EncodeToString(rspSum[:])

	require.Nil(t, d.ProcessSuccess([]byte("rspauth="+rspauth)))
	require.True(t, d.Authenticated())
}

func TestDigestMD5RspAuthMismatch(t *testing.T) {
	d := NewDigestMD5("ortuman", "s3cret", "jackal.im")

	_, err := d.ProcessChallenge([]byte(digestChallenge))
	require.Nil(t, err)

	err = d.ProcessSuccess([]byte("rspauth=deadbeefdeadbeefdeadbeefdeadbeef"))
	require.Equal(t, ErrSASLServerSignatureMismatch, err)
}

func TestDigestMD5MissingNonce(t *testing.T) {
	d := NewDigestMD5("ortuman", "s3cret", "jackal.im")
	_, err := d.ProcessChallenge([]byte(`realm="jackal.im",qop="auth"`))
	require.Equal(t, ErrSASLMalformedRequest, err)
}
