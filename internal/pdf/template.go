package pdf

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"

	"ticketdesk/internal/utils"
)

// TemplateLoader fetches the background image of a printable ticket.
type TemplateLoader interface {
	Load(ctx context.Context) (image.Image, error)
}

// NewTemplateLoader picks a loader for source: http(s) URLs are fetched with
// client, anything else is read from disk.
func NewTemplateLoader(source string, client *http.Client) TemplateLoader {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		if client == nil {
			client = http.DefaultClient
		}
		return &URLTemplate{URL: source, Client: client}
	}
	return &FileTemplate{Path: source}
}

type FileTemplate struct {
	Path string
}

func (f *FileTemplate) Load(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, utils.TemplateLoadError(f.Path, err)
	}
	img, err := imaging.Open(f.Path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, utils.TemplateLoadError(f.Path, err)
	}
	return img, nil
}

type URLTemplate struct {
	URL    string
	Client *http.Client
}

func (u *URLTemplate) Load(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.URL, nil)
	if err != nil {
		return nil, utils.TemplateLoadError(u.URL, err)
	}
	resp, err := u.Client.Do(req)
	if err != nil {
		return nil, utils.TemplateLoadError(u.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, utils.TemplateLoadError(u.URL, fmt.Errorf("status %d", resp.StatusCode))
	}
	img, err := imaging.Decode(resp.Body, imaging.AutoOrientation(true))
	if err != nil {
		return nil, utils.TemplateLoadError(u.URL, err)
	}
	return img, nil
}
