// Package deeplink converts content identifiers to the opaque payloads carried
// by t.me start links and back.
package deeplink

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	lockedPrefix   = "VID_"
	unlockedPrefix = "UNLOCK_"
)

type Access uint8

const (
	Locked Access = iota + 1
	Unlocked
)

func (a Access) String() string {
	switch a {
	case Locked:
		return "locked"
	case Unlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

type Token struct {
	Access    Access
	ContentID int64
}

func LockedToken(contentID int64) Token {
	return Token{Access: Locked, ContentID: contentID}
}

func UnlockedToken(contentID int64) Token {
	return Token{Access: Unlocked, ContentID: contentID}
}

// ErrMalformedToken is returned for every payload Decode rejects. The wrapped
// text carries the reason and is meant for logs only.
var ErrMalformedToken = errors.New("malformed deep link token")

func Encode(token Token) string {
	prefix := lockedPrefix
	if token.Access == Unlocked {
		prefix = unlockedPrefix
	}
	raw := prefix + strconv.FormatInt(token.ContentID, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func Decode(payload string) (Token, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return Token{}, malformed("empty payload")
	}

	if rem := len(payload) % 4; rem != 0 {
		payload += strings.Repeat("=", 4-rem)
	}
	decoded, err := base64.URLEncoding.DecodeString(payload)
	if err != nil {
		return Token{}, malformed("base64: %v", err)
	}

	text := string(decoded)
	var (
		access Access
		suffix string
	)
	switch {
	case strings.HasPrefix(text, unlockedPrefix):
		access = Unlocked
		suffix = strings.TrimPrefix(text, unlockedPrefix)
	case strings.HasPrefix(text, lockedPrefix):
		access = Locked
		suffix = strings.TrimPrefix(text, lockedPrefix)
	default:
		return Token{}, malformed("unknown prefix")
	}

	id, err := parseContentID(suffix)
	if err != nil {
		return Token{}, malformed("content id %q: %v", suffix, err)
	}
	return Token{Access: access, ContentID: id}, nil
}

// Link builds the t.me start link for a bot username with or without the leading "@".
func Link(botUsername string, token Token) string {
	username := strings.TrimPrefix(strings.TrimSpace(botUsername), "@")
	query := url.Values{"start": []string{Encode(token)}}
	return "https://t.me/" + username + "?" + query.Encode()
}

// parseContentID accepts canonical decimal only, so every id has exactly one payload.
func parseContentID(raw string) (int64, error) {
	if raw == "" {
		return 0, errors.New("empty")
	}
	if raw[0] == '0' {
		return 0, errors.New("leading zero")
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return 0, errors.New("not a decimal number")
		}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrMalformedToken}, args...)...)
}
