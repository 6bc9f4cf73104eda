/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package auth

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

type digestMD5State int

const (
	startDigestMD5State digestMD5State = iota
	respondedDigestMD5State
)

// DigestMD5 represents a DIGEST-MD5 client authenticator.
type DigestMD5 struct {
	username      string
	password      string
	domain        string
	state         digestMD5State
	expectedAuth  string
	authenticated bool
}

// NewDigestMD5 returns a new DIGEST-MD5 authenticator instance.
func NewDigestMD5(username, password, domain string) *DigestMD5 {
	return &DigestMD5{
		username: username,
		password: password,
		domain:   domain,
		state:    startDigestMD5State,
	}
}

// Mechanism returns authenticator mechanism name.
func (d *DigestMD5) Mechanism() string {
	return "DIGEST-MD5"
}

// InitialResponse returns nil. DIGEST-MD5 is server-first.
func (d *DigestMD5) InitialResponse() ([]byte, error) {
	return nil, nil
}

// ProcessChallenge computes the digest response for the server
// challenge, or validates 'rspauth' on the second round.
func (d *DigestMD5) ProcessChallenge(challenge []byte) ([]byte, error) {
	switch d.state {
	case startDigestMD5State:
		return d.respond(challenge)
	case respondedDigestMD5State:
		if err := d.verifyRspAuth(challenge); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return nil, ErrSASLMalformedRequest
}

// ProcessSuccess validates 'rspauth' when it arrives attached to success.
func (d *DigestMD5) ProcessSuccess(data []byte) error {
	if d.state == respondedDigestMD5State && len(data) > 0 {
		if err := d.verifyRspAuth(data); err != nil {
			return err
		}
	}
	d.authenticated = true
	return nil
}

// Authenticated returns whether or not the mechanism completed.
func (d *DigestMD5) Authenticated() bool {
	return d.authenticated
}

// Reset resets digest-md5 authenticator internal state.
func (d *DigestMD5) Reset() {
	d.state = startDigestMD5State
	d.expectedAuth = ""
	d.authenticated = false
}

func (d *DigestMD5) respond(challenge []byte) ([]byte, error) {
	params := parseDigestParameters(string(challenge))
	nonce := params["nonce"]
	if len(nonce) == 0 {
		return nil, ErrSASLMalformedRequest
	}
	realm := params["realm"]
	if len(realm) == 0 {
		realm = d.domain
	}
	cnonceBytes := make([]byte, 14)
	if _, err := rand.Read(cnonceBytes); err != nil {
		return nil, err
	}
	cnonce := hex.EncodeToString(cnonceBytes)
	nc := "00000001"
	digestURI := "xmpp/" + d.domain

	a1 := func() []byte {
		x := md5.Sum([]byte(d.username + ":" + realm + ":" + d.password))
		return append(x[:], []byte(":"+nonce+":"+cnonce)...)
	}()
	ha1 := md5Hex(a1)
	ha2 := md5Hex([]byte("AUTHENTICATE:" + digestURI))
	kd := strings.Join([]string{ha1, nonce, nc, cnonce, "auth", ha2}, ":")
	response := md5Hex([]byte(kd))

	// compute expected rspauth: same key digest with empty A2 method
	rspHa2 := md5Hex([]byte(":" + digestURI))
	rspKd := strings.Join([]string{ha1, nonce, nc, cnonce, "auth", rspHa2}, ":")
	d.expectedAuth = md5Hex([]byte(rspKd))

	out := fmt.Sprintf(`charset=utf-8,username="%s",realm="%s",nonce="%s",nc=%s,cnonce="%s",digest-uri="%s",response=%s,qop=auth`,
		d.username, realm, nonce, nc, cnonce, digestURI, response)
	d.state = respondedDigestMD5State
	return []byte(out), nil
}

func (d *DigestMD5) verifyRspAuth(payload []byte) error {
	params := parseDigestParameters(string(payload))
	if params["rspauth"] != d.expectedAuth {
		return ErrSASLServerSignatureMismatch
	}
	return nil
}

func parseDigestParameters(payload string) map[string]string {
	ret := map[string]string{}
	for _, field := range strings.Split(payload, ",") {
		eq := strings.Index(field, "=")
		if eq < 1 {
			continue
		}
		key := strings.TrimSpace(field[:eq])
		value := strings.Trim(strings.TrimSpace(field[eq+1:]), `"`)
		ret[key] = value
	}
	return ret
}

func md5Hex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}
