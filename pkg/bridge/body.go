package bridge

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
)

// EncodeBody converts a script-provided request body description into
// raw bytes plus a content type. Scripts describe bodies as a map with
// exactly one of the supported keys:
//
//	{"string": "..."}  UTF-8 text, no content type implied
//	{"base64": "..."}  binary payload, application/octet-stream
//	{"json": {...}}    JSON value, application/json
//	{"form": {...}}    string map, application/x-www-form-urlencoded
//
// A nil or empty description yields an empty body.
func EncodeBody(body map[string]any) ([]byte, string, error) {
	if len(body) == 0 {
		return nil, "", nil
	}

	if v, ok := body["string"]; ok {
		return []byte(ParseString(v)), "", nil
	}

	if v, ok := body["base64"]; ok {
		data, err := base64.StdEncoding.DecodeString(ParseString(v))
		if err != nil {
			return nil, "", fmt.Errorf("%w: base64 body: %v", ErrInvalidArguments, err)
		}
		return data, "application/octet-stream", nil
	}

	if v, ok := body["json"]; ok {
		data, err := DefaultCodec.Encode(v)
		if err != nil {
			return nil, "", fmt.Errorf("%w: json body: %v", ErrInvalidArguments, err)
		}
		return data, "application/json", nil
	}

	if v, ok := body["form"]; ok {
		fields := ParseMap(v)
		if fields == nil {
			return nil, "", fmt.Errorf("%w: form body must be a map", ErrInvalidArguments)
		}
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		values := url.Values{}
		for _, k := range keys {
			values.Set(k, ParseString(fields[k]))
		}
		return []byte(values.Encode()), "application/x-www-form-urlencoded", nil
	}

	return nil, "", fmt.Errorf("%w: unsupported body keys", ErrInvalidArguments)
}
