package messaging

import (
	"testing"
)

func TestDecodeRouting(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int64
		wantErr bool
	}{
		{
			name: "valid frame",
			body: `{"type":"message","roomId":42,"content":"hi"}`,
			want: 42,
		},
		{
			name:    "missing roomId",
			body:    `{"type":"message","content":"hi"}`,
			wantErr: true,
		},
		{
			name:    "zero roomId",
			body:    `{"type":"message","roomId":0}`,
			wantErr: true,
		},
		{
			name:    "not json",
			body:    `not json at all`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeRouting([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Errorf("decodeRouting(%q) expected error, got roomID %d", tt.body, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeRouting(%q) unexpected error: %v", tt.body, err)
			}
			if got != tt.want {
				t.Errorf("decodeRouting(%q) = %d, want %d", tt.body, got, tt.want)
			}
		})
	}
}
