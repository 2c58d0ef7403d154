package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxReplyDepth is the deepest container nesting accepted in a reply.
const MaxReplyDepth = 2

// ErrMalformedResponse is returned for replies that carry neither data nor
// a cancel reason, or whose data is not acceptable JSON.
var ErrMalformedResponse = errors.New("malformed form response")

// DecodeReply extracts the reply value from pk. closed is true when the
// client cancelled the form, in which case value is nil.
func DecodeReply(pk *ModalFormResponse) (value any, closed bool, err error) {
	switch {
	case pk.CancelReason != nil:
		return nil, true, nil
	case pk.FormData != nil:
		v, err := DecodeFormData([]byte(*pk.FormData))
		if err != nil {
			return nil, false, err
		}
		return v, false, nil
	default:
		return nil, false, fmt.Errorf("%w: expected either formData or cancelReason", ErrMalformedResponse)
	}
}

// DecodeFormData parses reply JSON. Numbers are kept as json.Number so that
// integers and floats stay distinguishable. The text must hold exactly one
// value nested at most MaxReplyDepth containers deep.
func DecodeFormData(data []byte) (any, error) {
	if err := checkDepth(data, MaxReplyDepth); err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after reply", ErrMalformedResponse)
	}
	return v, nil
}

func checkDepth(data []byte, max int) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		switch tok {
		case json.Delim('['), json.Delim('{'):
			depth++
			if depth > max {
				return fmt.Errorf("%w: nesting deeper than %d", ErrMalformedResponse, max)
			}
		case json.Delim(']'), json.Delim('}'):
			depth--
		}
	}
}
