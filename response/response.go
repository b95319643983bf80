// Package response implements the ResponseBuilder pipeline from spec §4.6:
// a small immutable configurator that fixes a decode function, and a
// buffered response object that exposes the decoded body plus on-demand
// re-decodings of the same cached buffer.
//
// Go has no clean way to let a method swap its own receiver's type
// parameter (AsJSON() on a Builder[string] can't hand back a
// Builder[int]), so the generic "as<R>(type)" chain step from spec.md is
// rendered as a free generic function, As[T], operating on a
// non-generic Builder whose decode slot is typed func([]byte) (any,
// error). Re-decoding on the finished Response follows the same shape,
// as the free function DecodeAs[T].
package response

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/alfreddev/connpool/codec"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// Builder chains decoder configuration. The zero value decodes to the raw
// body bytes.
type Builder struct {
	decode func(buf []byte) (any, error)
}

// NewBuilder returns a Builder with no decoder configured; Send on it
// yields a Response whose Body() is the raw []byte.
func NewBuilder() *Builder {
	return &Builder{decode: func(buf []byte) (any, error) { return buf, nil }}
}

// AsString configures UTF-8 string decoding.
func (b *Builder) AsString() *Builder {
	return &Builder{decode: func(buf []byte) (any, error) { return string(buf), nil }}
}

// AsStringEncoding decodes the body as a string using a specific
// non-UTF-8 charset (e.g. golang.org/x/text/encoding/charmap.ISO8859_1),
// for upstreams that don't speak UTF-8.
func (b *Builder) AsStringEncoding(enc encoding.Encoding) *Builder {
	return &Builder{decode: func(buf []byte) (any, error) {
		reader := transform.NewReader(bytes.NewReader(buf), enc.NewDecoder())
		var out bytes.Buffer
		if _, err := out.ReadFrom(reader); err != nil {
			return nil, fmt.Errorf("response: decode charset: %w", err)
		}
		return out.String(), nil
	}}
}

// AsJSONObject configures decoding into a generic map[string]any.
func (b *Builder) AsJSONObject() *Builder {
	return &Builder{decode: func(buf []byte) (any, error) {
		var v map[string]any
		if err := json.Unmarshal(buf, &v); err != nil {
			return nil, fmt.Errorf("response: decode json object: %w", err)
		}
		return v, nil
	}}
}

// As configures decoding into a statically typed value T. It is a free
// function rather than a Builder method because Go methods cannot
// introduce a new receiver-level type parameter (see package doc).
func As[T any](b *Builder) *Builder {
	return &Builder{decode: func(buf []byte) (any, error) {
		var v T
		if err := json.Unmarshal(buf, &v); err != nil {
			return nil, fmt.Errorf("response: decode typed body: %w", err)
		}
		return v, nil
	}}
}

// Send performs the HTTP exchange over client and invokes callback exactly
// once, with either a decoded Response or the first error encountered —
// whichever comes first. A panic inside the configured decoder is also
// recovered into a callback error, matching spec §4.6's one-shot
// guarantee ("first completion wins").
func (b *Builder) Send(req *http.Request, client *codec.Client, callback func(*Response, error)) {
	var done atomic.Bool
	complete := func(resp *Response, err error) {
		if done.CompareAndSwap(false, true) {
			callback(resp, err)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			complete(nil, fmt.Errorf("response: panic while decoding: %v", r))
		}
	}()

	raw, err := client.Do(req)
	if err != nil {
		complete(nil, err)
		return
	}
	defer raw.Release()

	body, err := decompress(raw)
	if err != nil {
		complete(nil, err)
		return
	}

	// Copy out of the pooled buffer before decoding: raw is released when
	// Send returns, and a pass-through decoder returns the slice it is given.
	cached := append([]byte(nil), body...)

	decode := b.decode
	if decode == nil {
		decode = func(buf []byte) (any, error) { return buf, nil }
	}
	decoded, err := decode(cached)
	if err != nil {
		complete(nil, err)
		return
	}

	complete(&Response{
		Proto:      raw.Proto,
		StatusCode: raw.StatusCode,
		Status:     raw.Status,
		Header:     raw.Header,
		body:       decoded,
		raw:        cached,
	}, nil)
}

// decompress transparently gunzips the body when the upstream set
// Content-Encoding: gzip, using klauspost/compress for the inflate (the
// same dependency the fasthttp-family example in the retrieved pack pulls
// in for this exact purpose) rather than compress/gzip, which is
// noticeably slower on the decode path.
func decompress(raw *codec.RawResponse) ([]byte, error) {
	if raw.Header.Get("Content-Encoding") != "gzip" {
		return raw.Bytes(), nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("response: gzip: %w", err)
	}
	defer zr.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(zr); err != nil {
		return nil, fmt.Errorf("response: gzip read: %w", err)
	}
	return out.Bytes(), nil
}

// Response is the buffered, pre-decoded result of a Send. All re-decoding
// accessors operate on the cached buffer; none of them re-consume the
// stream (it is already fully read by the time a Response exists).
type Response struct {
	Proto      string
	StatusCode int
	Status     string
	Header     http.Header

	body any
	raw  []byte
}

// Body returns the value produced by the Builder's configured decoder.
func (r *Response) Body() any { return r.body }

// Bytes returns the raw cached body buffer.
func (r *Response) Bytes() []byte { return r.raw }

// String re-decodes the cached buffer as a UTF-8 string.
func (r *Response) String() string { return string(r.raw) }

// StringEncoding re-decodes the cached buffer using a specific charset.
func (r *Response) StringEncoding(enc encoding.Encoding) (string, error) {
	reader := transform.NewReader(bytes.NewReader(r.raw), enc.NewDecoder())
	var out bytes.Buffer
	if _, err := out.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("response: decode charset: %w", err)
	}
	return out.String(), nil
}

// JSONObject re-decodes the cached buffer into a generic JSON object.
func (r *Response) JSONObject() (map[string]any, error) {
	var v map[string]any
	if err := json.Unmarshal(r.raw, &v); err != nil {
		return nil, fmt.Errorf("response: decode json object: %w", err)
	}
	return v, nil
}

// DecodeAs re-decodes the cached buffer into a statically typed value T.
func DecodeAs[T any](r *Response) (T, error) {
	var v T
	err := json.Unmarshal(r.raw, &v)
	return v, err
}
