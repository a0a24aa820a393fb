package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// seedFile — формат файла каталога:
//
//	products:
//	  - id: mug-1
//	    name: Red mug
//	    category: Kitchen
//	    price: "9.50"
//	    image_url: https://cdn.example.com/mug.jpg
//	  - id: lamp-2
//	    ...
//	    image_file: images/lamp.png   # загружается в MinIO
type seedFile struct {
	Products []seedFileProduct `yaml:"products"`
}

type seedFileProduct struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Category    string `yaml:"category"`
	Price       string `yaml:"price"`
	Description string `yaml:"description"`
	ImageURL    string `yaml:"image_url"`
	ImageFile   string `yaml:"image_file"`
}

func loadSeedFile(path string) (*usecase.SeedCatalogReq, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return parseSeedFile(data, filepath.Dir(path))
}

// parseSeedFile разбирает каталог. Пути image_file считаются относительно baseDir.
func parseSeedFile(data []byte, baseDir string) (*usecase.SeedCatalogReq, error) {
	const op = "parseSeedFile"

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, e.Wrap(op, err)
	}

	req := &usecase.SeedCatalogReq{Products: make([]usecase.SeedProduct, 0, len(file.Products))}
	for _, p := range file.Products {
		price, err := decimal.NewFromString(strings.TrimSpace(p.Price))
		if err != nil {
			return nil, e.Wrap(op+": product "+p.ID, e.ErrInvalidPrice)
		}

		seed := usecase.SeedProduct{
			Product: *domain.NewProduct(p.ID, p.Name, p.Category, price, p.Description, p.ImageURL),
		}

		if p.ImageFile != "" {
			imagePath := p.ImageFile
			if !filepath.IsAbs(imagePath) {
				imagePath = filepath.Join(baseDir, imagePath)
			}

			image, err := os.ReadFile(imagePath)
			if err != nil {
				return nil, e.Wrap(op+": product "+p.ID, err)
			}
			seed.ImageData = image
			seed.ImageContentType = http.DetectContentType(image)
		}

		req.Products = append(req.Products, seed)
	}

	return req, nil
}
