package token

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrMalformedPayload is returned when a scanned payload cannot be decoded
// into a unit token.
var ErrMalformedPayload = errors.New("malformed scan payload")

// Token identifies one physical unit within an order. UID is unique within
// the order and canonically equals "{orderID}_{unitIndex}".
type Token struct {
	OrderID   string
	UnitIndex int
	UID       string
}

// UID builds the canonical unit identifier for (orderID, unitIndex).
func UID(orderID string, unitIndex int) string {
	return fmt.Sprintf("%s_%d", orderID, unitIndex)
}

// Encode produces the scannable payload for one unit. The payload is a URL
// carrying orderId, unit and uid as query parameters so that a generic
// scanner app can open it, while Decode still recovers the full token.
// Encoding is deterministic: the same (orderID, unitIndex) always yields
// the same payload.
func Encode(baseURL, orderID string, unitIndex int) string {
	uid := UID(orderID, unitIndex)

	q := url.Values{}
	q.Set("orderId", orderID)
	q.Set("unit", strconv.Itoa(unitIndex))
	q.Set("uid", uid)

	return baseURL + "?" + q.Encode()
}

// Decode parses a scanned payload into a Token. Two payload forms are
// accepted: a URL whose query string carries orderId/unit/uid, and a raw
// uid of the form "{orderID}_{unitIndex}". The orderID itself may contain
// underscores; the raw form is parsed by taking the last "_" segment as
// the unit index. Decode never panics; any input it cannot understand
// yields ErrMalformedPayload.
func Decode(payload string) (Token, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return Token{}, ErrMalformedPayload
	}

	if looksLikeURL(payload) {
		return decodeURL(payload)
	}
	return decodeRawUID(payload)
}

func looksLikeURL(payload string) bool {
	return strings.HasPrefix(payload, "http://") ||
		strings.HasPrefix(payload, "https://")
}

func decodeURL(payload string) (Token, error) {
	u, err := url.Parse(payload)
	if err != nil {
		return Token{}, ErrMalformedPayload
	}

	q := u.Query()
	orderID := q.Get("orderId")
	unitStr := q.Get("unit")
	uid := q.Get("uid")

	if orderID == "" || unitStr == "" || uid == "" {
		return Token{}, ErrMalformedPayload
	}

	unitIndex, err := strconv.Atoi(unitStr)
	if err != nil || unitIndex < 1 {
		return Token{}, ErrMalformedPayload
	}

	return Token{OrderID: orderID, UnitIndex: unitIndex, UID: uid}, nil
}

func decodeRawUID(payload string) (Token, error) {
	idx := strings.LastIndex(payload, "_")
	if idx <= 0 || idx == len(payload)-1 {
		return Token{}, ErrMalformedPayload
	}

	orderID := payload[:idx]
	unitIndex, err := strconv.Atoi(payload[idx+1:])
	if err != nil || unitIndex < 1 {
		return Token{}, ErrMalformedPayload
	}

	return Token{OrderID: orderID, UnitIndex: unitIndex, UID: payload}, nil
}
