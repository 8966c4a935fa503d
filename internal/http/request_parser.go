package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"mysubs/internal/core"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// DecodeJSON reads a JSON body into dst, which may already hold defaults.
// Only the fields present in the body are overwritten.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return errors.New("empty request body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("invalid value for %s", typeErr.Field)
		}
		if errors.Is(err, core.ErrInvalidPrice) || errors.Is(err, core.ErrInvalidDate) {
			return err
		}
		return errors.New("malformed JSON body")
	}
	return nil
}

// QueryInt reads an integer query parameter within [min, max]. Missing
// values yield def; malformed or out of range values are errors.
func QueryInt(q url.Values, key string, def, min, max int) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", key, min, max)
	}
	return n, nil
}

// flexPrice accepts a JSON number or a decimal string such as "17,000".
type flexPrice struct {
	value float64
	set   bool
}

func (p *flexPrice) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var raw string
		if err := json.Unmarshal(b, &raw); err != nil {
			return core.ErrInvalidPrice
		}
		v, err := core.ParsePrice(raw)
		if err != nil {
			return err
		}
		p.value, p.set = v, true
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return core.ErrInvalidPrice
	}
	p.value, p.set = v, true
	return nil
}

// subscriptionBody overlays a request onto a subscription. The outer price
// field shadows the embedded one.
type subscriptionBody struct {
	core.Subscription
	Price flexPrice `json:"price"`
}

// ParseSubscription decodes a subscription body over base.
func ParseSubscription(w http.ResponseWriter, r *http.Request, base core.Subscription) (core.Subscription, error) {
	body := subscriptionBody{Subscription: base}
	if err := DecodeJSON(w, r, &body); err != nil {
		return core.Subscription{}, err
	}
	sub := body.Subscription
	if body.Price.set {
		sub.Price = body.Price.value
	}
	sub.Name = sanitizeInput(sub.Name)
	sub.Memo = sanitizeInput(sub.Memo)
	return sub, nil
}

// sanitizeInput removes control characters except tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}
