package capture

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
)

const macBytes = 12

// MessageRef points at the message a capture was started from.
type MessageRef struct {
	GuildID   int64
	ChannelID string
	MessageID string
}

// Scope is where the capture form was submitted.
type Scope struct {
	GuildID   int64
	ChannelID string
}

// IssueToken encodes ref into a string short enough for a component custom
// id. With a secret the token is "<message_id>.<mac>", where the mac binds
// the message to its guild and channel; without one it is the bare id.
func IssueToken(secret []byte, ref MessageRef) string {
	if len(secret) == 0 {
		return ref.MessageID
	}
	return ref.MessageID + "." + sign(secret, ref)
}

// ResolveToken recovers the message reference carried by token for a form
// submitted in scope. A token minted for another guild or channel, or altered
// in transit, yields ErrInvalidToken.
func ResolveToken(secret []byte, scope Scope, token string) (MessageRef, error) {
	token = strings.TrimSpace(token)
	messageID, mac, hasMAC := strings.Cut(token, ".")
	if !validSnowflake(messageID) {
		return MessageRef{}, ErrInvalidToken
	}
	ref := MessageRef{GuildID: scope.GuildID, ChannelID: scope.ChannelID, MessageID: messageID}
	if len(secret) == 0 {
		if hasMAC {
			return MessageRef{}, ErrInvalidToken
		}
		return ref, nil
	}
	if !hasMAC || !hmac.Equal([]byte(mac), []byte(sign(secret, ref))) {
		return MessageRef{}, ErrInvalidToken
	}
	return ref, nil
}

func sign(secret []byte, ref MessageRef) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(strconv.FormatInt(ref.GuildID, 10)))
	h.Write([]byte("|"))
	h.Write([]byte(ref.ChannelID))
	h.Write([]byte("|"))
	h.Write([]byte(ref.MessageID))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)[:macBytes])
}

func validSnowflake(value string) bool {
	if value == "" || len(value) > 20 {
		return false
	}
	_, err := strconv.ParseUint(value, 10, 64)
	return err == nil
}
