package recognition

import (
	"bytes"
	"encoding/base64"
	"image"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/apperror"
)

func TestValidateImage(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{name: "png", data: testPNG(t, 64, 48), wantErr: false},
		{name: "empty", data: nil, wantErr: true},
		{name: "garbage", data: []byte("hello world, not an image"), wantErr: true},
		{name: "too small", data: testPNG(t, 8, 8), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ValidateImage(tt.data)
			if tt.wantErr {
				if apperror.CodeOf(err) != apperror.CodeInput {
					t.Errorf("ValidateImage() = %v, want input error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateImage() error: %v", err)
			}
			if info.Format != "png" || info.Width != 64 || info.Height != 48 {
				t.Errorf("ValidateImage() = %+v", info)
			}
		})
	}
}

func TestDecodeBase64Image(t *testing.T) {
	raw := testPNG(t, 40, 40)
	enc := base64.StdEncoding.EncodeToString(raw)

	for _, in := range []string{enc, "data:image/png;base64," + enc} {
		got, err := DecodeBase64Image(in)
		if err != nil {
			t.Fatalf("DecodeBase64Image() error: %v", err)
		}
		if !bytes.Equal(got, raw) {
			t.Error("decoded bytes differ")
		}
	}

	for _, in := range []string{"", "data:image/png;base64,", "!!!"} {
		if _, err := DecodeBase64Image(in); apperror.CodeOf(err) != apperror.CodeInput {
			t.Errorf("DecodeBase64Image(%q) = %v, want input error", in, err)
		}
	}
}

func TestPrepareImage(t *testing.T) {
	out, err := PrepareImage(testPNG(t, 200, 100), 50)
	if err != nil {
		t.Fatalf("PrepareImage() error: %v", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode prepared image: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("format = %s, want jpeg", format)
	}
	if cfg.Width != 50 || cfg.Height != 25 {
		t.Errorf("size = %dx%d, want 50x25", cfg.Width, cfg.Height)
	}
}
