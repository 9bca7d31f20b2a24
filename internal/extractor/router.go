package extractor

import (
	"errors"
	"fmt"
)

// ErrUnsupportedMediaType is returned by Route when no registered extractor
// supports the requested media type.
var ErrUnsupportedMediaType = errors.New("不支持的文件格式")

// Router keeps an ordered registry of extractors and dispatches incoming
// buffers to the first one that supports the declared media type.
// Registration order is the priority order.
type Router struct {
	registry []Extractor
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{}
}

// Register appends an extractor to the registry. First-registered wins ties.
func (r *Router) Register(e Extractor) {
	r.registry = append(r.registry, e)
}

// Route returns the first registered extractor that supports mediaType.
func (r *Router) Route(mediaType string) (Extractor, error) {
	for _, e := range r.registry {
		if e.Supports(mediaType) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, mediaType)
}

// Process is the single entry point for callers: it routes, extracts,
// force-sets the document's media type, and normalizes. A document is
// either fully normalized or an error is returned, never partially.
func (r *Router) Process(buffer []byte, fileName, mediaType string) (*ExtractedDocument, error) {
	e, err := r.Route(mediaType)
	if err != nil {
		return nil, err
	}
	doc, err := e.Extract(buffer, fileName)
	if err != nil {
		return nil, err
	}
	doc.MimeType = mediaType
	NormalizeDocument(doc)
	return doc, nil
}
