package handlers

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"stitchmart/internal/common"
	"stitchmart/internal/models"
	"stitchmart/internal/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const designFilePrefix = "designFile_"

// designForm reads the multipart fields of a design create or update request.
// List fields may be sent repeated, either as "name" or "name[]".
type designForm struct {
	form   *multipart.Form
	errors map[string]string
}

func newDesignForm(form *multipart.Form) *designForm {
	return &designForm{form: form, errors: map[string]string{}}
}

func (f *designForm) value(name string) (string, bool) {
	vs, ok := f.form.Value[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return strings.TrimSpace(vs[0]), true
}

func (f *designForm) list(name string) ([]string, bool) {
	var raw []string
	a, okA := f.form.Value[name]
	b, okB := f.form.Value[name+"[]"]
	if !okA && !okB {
		return nil, false
	}
	raw = append(raw, a...)
	raw = append(raw, b...)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out, true
}

func (f *designForm) price() (*decimal.Decimal, bool) {
	raw, ok := f.value("price")
	if !ok {
		return nil, false
	}
	p, err := decimal.NewFromString(raw)
	if err != nil {
		f.errors["price"] = "price must be a number"
		return nil, true
	}
	return &p, true
}

func (f *designForm) stitchCount() (*int, bool) {
	raw, ok := f.value("stitchCount")
	if !ok {
		return nil, false
	}
	if raw == "" {
		n := 0
		return &n, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		f.errors["stitchCount"] = "stitchCount must be an integer"
		return nil, true
	}
	return &n, true
}

func (f *designForm) boolean(name string) (*bool, bool) {
	raw, ok := f.value(name)
	if !ok {
		return nil, false
	}
	b := strings.EqualFold(raw, "true") || raw == "1" || strings.EqualFold(raw, "on")
	return &b, true
}

func (f *designForm) categories() ([]uuid.UUID, bool) {
	raw, ok := f.list("categories")
	if !ok {
		return nil, false
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, v := range raw {
		id, err := uuid.Parse(v)
		if err != nil {
			f.errors["categories"] = "categories must be valid ids"
			return nil, true
		}
		ids = append(ids, id)
	}
	return ids, true
}

func (f *designForm) formats() ([]models.Format, bool) {
	raw, ok := f.list("formats")
	if !ok {
		return nil, false
	}
	out := make([]models.Format, 0, len(raw))
	for _, v := range raw {
		format, valid := models.ParseFormat(v)
		if !valid {
			f.errors["formats"] = "unsupported format " + strconv.Quote(v)
			return nil, true
		}
		out = append(out, format)
	}
	return out, true
}

func (f *designForm) existingImages() ([]models.Image, bool) {
	raw, ok := f.value("existingImages")
	if !ok {
		return nil, false
	}
	images := []models.Image{}
	if raw == "" {
		return images, true
	}
	if err := json.Unmarshal([]byte(raw), &images); err != nil {
		f.errors["existingImages"] = "existingImages must be a JSON array of {url, alt}"
		return nil, true
	}
	return images, true
}

// uploads collects images (images or images[]) and one file per designFile_<FORMAT> field.
func (f *designForm) uploads() services.AssetUploads {
	out := services.AssetUploads{Files: map[models.Format]services.Upload{}}
	for _, name := range []string{"images", "images[]"} {
		for _, fh := range f.form.File[name] {
			out.Images = append(out.Images, fileUpload(fh))
		}
	}
	for name, fhs := range f.form.File {
		if !strings.HasPrefix(name, designFilePrefix) || len(fhs) == 0 {
			continue
		}
		format, ok := models.ParseFormat(strings.TrimPrefix(name, designFilePrefix))
		if !ok {
			f.errors[name] = "unsupported design file format"
			continue
		}
		out.Files[format] = fileUpload(fhs[0])
	}
	return out
}

func (f *designForm) err() error {
	if len(f.errors) == 0 {
		return nil
	}
	return common.Validation("Validation failed", f.errors)
}

// draft builds a new design from the create form.
func (f *designForm) draft() (*models.Design, services.AssetUploads, error) {
	d := models.NewDesign()
	d.Title, _ = f.value("title")
	d.Description, _ = f.value("description")
	if p, ok := f.price(); !ok {
		f.errors["price"] = "price is required"
	} else if p != nil {
		d.Price = *p
	}
	if v, ok := f.value("difficulty"); ok {
		d.Difficulty = models.Difficulty(v)
	}
	if n, _ := f.stitchCount(); n != nil {
		d.StitchCount = *n
	}
	if ids, _ := f.categories(); ids != nil {
		d.CategoryIDs = ids
	}
	if formats, _ := f.formats(); formats != nil {
		d.Formats = formats
	}
	if tags, ok := f.list("tags"); ok {
		d.Tags = tags
	}
	if b, _ := f.boolean("featured"); b != nil {
		d.Featured = *b
	}
	if b, _ := f.boolean("popular"); b != nil {
		d.Popular = *b
	}
	uploads := f.uploads()
	return d, uploads, f.err()
}

// patch builds a partial update: only fields present in the form change.
func (f *designForm) patch() (*models.DesignPatch, services.AssetUploads, error) {
	p := &models.DesignPatch{}
	if v, ok := f.value("title"); ok {
		p.Title = &v
	}
	if v, ok := f.value("description"); ok {
		p.Description = &v
	}
	p.Price, _ = f.price()
	if v, ok := f.value("difficulty"); ok {
		d := models.Difficulty(v)
		p.Difficulty = &d
	}
	p.StitchCount, _ = f.stitchCount()
	p.CategoryIDs, _ = f.categories()
	p.Formats, _ = f.formats()
	if tags, ok := f.list("tags"); ok {
		p.Tags = tags
	}
	p.Featured, _ = f.boolean("featured")
	p.Popular, _ = f.boolean("popular")
	p.KeepImages, _ = f.existingImages()
	uploads := f.uploads()
	return p, uploads, f.err()
}

func fileUpload(fh *multipart.FileHeader) services.Upload {
	return services.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
