package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	ErrInvalidInitData = errors.New("invalid init data")
	ErrNoBotToken      = errors.New("bot token not configured")
)

// Verify checks init-data signed for botToken and returns the Telegram user
// id it carries.
func Verify(initData, botToken string) (int64, error) {
	if botToken == "" {
		return 0, ErrNoBotToken
	}
	values, err := url.ParseQuery(initData)
	if err != nil {
		return 0, ErrInvalidInitData
	}

	got := values.Get("hash")
	values.Del("hash")
	want := signature(values, botToken)
	if got == "" || !hmac.Equal([]byte(got), []byte(want)) {
		return 0, ErrInvalidInitData
	}

	user := last(values["user"])
	if user == "" || !gjson.Valid(user) {
		return 0, ErrInvalidInitData
	}
	id := gjson.Get(user, "id").Int()
	if id == 0 {
		return 0, ErrInvalidInitData
	}
	return id, nil
}

// Sign returns values encoded as init-data with a hash for botToken.
func Sign(values url.Values, botToken string) string {
	signed := url.Values{}
	for k, v := range values {
		if k != "hash" {
			signed[k] = v
		}
	}
	signed.Set("hash", signature(signed, botToken))
	return signed.Encode()
}

// webAppKey derives the Mini App secret from the bot token.
const webAppKey = "WebAppData"

// signature is hex(HMAC-SHA256(secret, data_check_string)) with
// secret = HMAC-SHA256("WebAppData", botToken). data_check_string is the
// sorted "key=value" pairs joined by newlines.
func signature(values url.Values, botToken string) string {
	pairs := make([]string, 0, len(values))
	for k, v := range values {
		if k == "hash" {
			continue
		}
		pairs = append(pairs, k+"="+last(v))
	}
	sort.Strings(pairs)

	secret := hmac.New(sha256.New, []byte(webAppKey))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(pairs, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}

func last(v []string) string {
	if len(v) == 0 {
		return ""
	}
	return v[len(v)-1]
}
