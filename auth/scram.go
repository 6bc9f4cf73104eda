/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

type scramState int

const (
	startScramState scramState = iota
	challengedScramState
	provedScramState
)

type scramParameters map[string]string

func parseScramParameters(payload []byte) (scramParameters, error) {
	ret := scramParameters{}
	for _, field := range strings.Split(string(payload), ",") {
		if len(field) < 2 || field[1] != '=' {
			return nil, ErrSASLMalformedRequest
		}
		ret[field[0:1]] = field[2:]
	}
	return ret, nil
}

// Scram represents a SCRAM-SHA-1 client authenticator.
type Scram struct {
	username       string
	password       string
	state          scramState
	clientNonce    string
	firstMessage   string
	authMessage    string
	saltedPassword []byte
	authenticated  bool
}

// NewScram returns a new SCRAM-SHA-1 authenticator instance.
func NewScram(username, password string) *Scram {
	return &Scram{username: username, password: password, state: startScramState}
}

// Mechanism returns authenticator mechanism name.
func (s *Scram) Mechanism() string {
	return "SCRAM-SHA-1"
}

// InitialResponse returns the client first message.
func (s *Scram) InitialResponse() ([]byte, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	s.clientNonce = base64.StdEncoding.EncodeToString(nonce)
	s.firstMessage = fmt.Sprintf("n=%s,r=%s", escapeSaslName(s.username), s.clientNonce)
	s.state = challengedScramState
	return []byte("n,," + s.firstMessage), nil
}

// ProcessChallenge computes the client final message for the server
// first message, proving password knowledge.
func (s *Scram) ProcessChallenge(challenge []byte) ([]byte, error) {
	if s.state != challengedScramState {
		return nil, ErrSASLMalformedRequest
	}
	params, err := parseScramParameters(challenge)
	if err != nil {
		return nil, err
	}
	serverNonce := params["r"]
	iterations, _ := strconv.Atoi(params["i"])
	salt, err := base64.StdEncoding.DecodeString(params["s"])
	if err != nil {
		return nil, ErrSASLMalformedRequest
	}
	if !strings.HasPrefix(serverNonce, s.clientNonce) || iterations <= 0 {
		return nil, ErrSASLNotAuthorized
	}
	s.saltedPassword = pbkdf2.Key([]byte(s.password), salt, iterations, sha1.Size, sha1.New)

	clientKey := hmacSha1(s.saltedPassword, []byte("Client Key"))
	storedKey := sha1.Sum(clientKey)

	withoutProof := fmt.Sprintf("c=biws,r=%s", serverNonce)
	s.authMessage = s.firstMessage + "," + string(challenge) + "," + withoutProof

	clientSignature := hmacSha1(storedKey[:], []byte(s.authMessage))
	clientProof := make([]byte, len(clientKey))
	for i := 0; i < len(clientKey); i++ {
		clientProof[i] = clientKey[i] ^ clientSignature[i]
	}
	s.state = provedScramState
	final := withoutProof + ",p=" + base64.StdEncoding.EncodeToString(clientProof)
	return []byte(final), nil
}

// ProcessSuccess verifies the server signature attached to SASL success.
func (s *Scram) ProcessSuccess(data []byte) error {
	if s.state != provedScramState {
		return ErrSASLMalformedRequest
	}
	params, err := parseScramParameters(data)
	if err != nil {
		return err
	}
	serverKey := hmacSha1(s.saltedPassword, []byte("Server Key"))
	serverSignature := hmacSha1(serverKey, []byte(s.authMessage))

	expected := base64.StdEncoding.EncodeToString(serverSignature)
	if params["v"] != expected {
		return ErrSASLServerSignatureMismatch
	}
	s.authenticated = true
	return nil
}

// Authenticated returns whether or not the mechanism completed.
func (s *Scram) Authenticated() bool {
	return s.authenticated
}

// Reset resets scram authenticator internal state.
func (s *Scram) Reset() {
	s.state = startScramState
	s.clientNonce = ""
	s.firstMessage = ""
	s.authMessage = ""
	s.saltedPassword = nil
	s.authenticated = false
}

func hmacSha1(key, message []byte) []byte {
	mac := hmac.New(sha1.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}

func escapeSaslName(name string) string {
	name = strings.Replace(name, "=", "=3D", -1)
	return strings.Replace(name, ",", "=2C", -1)
}
