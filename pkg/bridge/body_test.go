package bridge

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestEncodeBody(t *testing.T) {
	tests := []struct {
		name     string
		body     map[string]any
		wantData string
		wantType string
		wantErr  bool
	}{
		{
			name:     "empty",
			body:     nil,
			wantData: "",
			wantType: "",
		},
		{
			name:     "string",
			body:     map[string]any{"string": "plain text"},
			wantData: "plain text",
			wantType: "",
		},
		{
			name:     "base64",
			body:     map[string]any{"base64": base64.StdEncoding.EncodeToString([]byte{0x01, 0x02})},
			wantData: "\x01\x02",
			wantType: "application/octet-stream",
		},
		{
			name:     "json",
			body:     map[string]any{"json": map[string]any{"k": "v"}},
			wantData: `{"k":"v"}`,
			wantType: "application/json",
		},
		{
			name:     "form",
			body:     map[string]any{"form": map[string]any{"b": "2", "a": "1"}},
			wantData: "a=1&b=2",
			wantType: "application/x-www-form-urlencoded",
		},
		{
			name:    "bad base64",
			body:    map[string]any{"base64": "!!!"},
			wantErr: true,
		},
		{
			name:    "unsupported key",
			body:    map[string]any{"blob": "x"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, contentType, err := EncodeBody(tt.body)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidArguments) {
					t.Fatalf("err = %v, want ErrInvalidArguments", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("EncodeBody: %v", err)
			}
			if string(data) != tt.wantData {
				t.Errorf("data = %q, want %q", data, tt.wantData)
			}
			if contentType != tt.wantType {
				t.Errorf("contentType = %q, want %q", contentType, tt.wantType)
			}
		})
	}
}
