package main

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/DRSN-tech/visual-search/pkg/e"
)

func TestParseSeedFile(t *testing.T) {
	dir := t.TempDir()

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "images"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "images", "lamp.png"), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	data := []byte(`
products:
  - id: mug-1
    name: Red mug
    category: Kitchen
    price: 9.50
    image_url: https://cdn.example.com/mug.jpg
  - id: lamp-2
    name: Desk lamp
    category: Lighting
    price: "24"
    description: Warm white
    image_file: images/lamp.png
`)

	req, err := parseSeedFile(data, dir)
	if err != nil {
		t.Fatalf("parseSeedFile: %v", err)
	}
	if len(req.Products) != 2 {
		t.Fatalf("products = %d, want 2", len(req.Products))
	}

	mug := req.Products[0]
	if mug.Product.Price.StringFixed(2) != "9.50" || mug.Product.ImageURL != "https://cdn.example.com/mug.jpg" || mug.ImageData != nil {
		t.Errorf("mug = %+v", mug)
	}

	lamp := req.Products[1]
	if !bytes.Equal(lamp.ImageData, buf.Bytes()) || lamp.ImageContentType != "image/png" {
		t.Errorf("lamp image = %d bytes, %q", len(lamp.ImageData), lamp.ImageContentType)
	}
	if lamp.Product.Description != "Warm white" || lamp.Product.Category != "Lighting" {
		t.Errorf("lamp = %+v", lamp.Product)
	}
}

func TestParseSeedFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{name: "bad price", data: "products:\n  - id: a\n    price: cheap\n", wantErr: e.ErrInvalidPrice},
		{name: "missing image file", data: "products:\n  - id: a\n    price: 1\n    image_file: nope.png\n", wantErr: os.ErrNotExist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseSeedFile([]byte(tt.data), t.TempDir()); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := parseSeedFile([]byte("products: [unclosed"), t.TempDir()); err == nil {
		t.Fatal("malformed yaml must fail")
	}
}
